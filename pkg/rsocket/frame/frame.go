package frame

// Frame is a tagged union over the sixteen RSocket frame kinds. Only the
// fields relevant to Kind are populated; accessors document which fields a
// given kind uses rather than splitting into a struct-per-kind hierarchy
// (spec.md §9: avoid deep hierarchies over frame/stream kinds).
type Frame struct {
	Kind     Kind
	StreamID StreamID
	Flags    Flags

	Payload Payload

	// InitialRequestN is set on REQUEST_STREAM and REQUEST_CHANNEL (LEASE
	// reuses it for its time-to-live).
	InitialRequestN uint32

	// RequestN is set on REQUEST_N.
	RequestN uint32

	// Position is set on KEEPALIVE (last-received position).
	Position uint64

	// ErrorCode and ErrorMessage are set on ERROR.
	ErrorCode    ErrorCode
	ErrorMessage string

	// Setup fields, set on SETUP.
	SetupMajor           uint16
	SetupMinor           uint16
	SetupKeepaliveMillis uint32
	SetupMaxLifetimeMs   uint32
	SetupMetadataMime    string
	SetupDataMime        string

	// Resume fields, set on RESUME.
	ResumeToken                []byte
	ResumeLastReceivedServer   uint64
	ResumeFirstAvailableClient uint64

	// ResumeOK fields, set on RESUME_OK.
	ResumePosition uint64
}

// IsComplete, IsNext, IsFollows, IsMetadata, IsResumeEnable, IsRespond are
// convenience readers over Flags; which are meaningful depends on Kind.
func (f *Frame) IsComplete() bool     { return f.Flags.Has(FlagComplete) }
func (f *Frame) IsNext() bool         { return f.Flags.Has(FlagNext) }
func (f *Frame) IsFollows() bool      { return f.Flags.Has(FlagFollows) }
func (f *Frame) IsMetadata() bool     { return f.Flags.Has(FlagMetadata) }
func (f *Frame) IsResumeEnable() bool { return f.Flags.Has(FlagResumeEnable) }
func (f *Frame) IsRespond() bool      { return f.Flags.Has(FlagRespond) }

// ErrorCode enumerates the wire error codes carried by ERROR frames.
type ErrorCode uint32

const (
	ErrorCodeInvalidSetup     ErrorCode = 0x00000001
	ErrorCodeUnsupportedSetup ErrorCode = 0x00000002
	ErrorCodeRejectedSetup    ErrorCode = 0x00000003
	ErrorCodeRejectedResume   ErrorCode = 0x00000004
	ErrorCodeConnectionError  ErrorCode = 0x00000101
	ErrorCodeConnectionClose  ErrorCode = 0x00000102
	ErrorCodeApplicationError ErrorCode = 0x00000201
	ErrorCodeRejected         ErrorCode = 0x00000202
	ErrorCodeCanceled         ErrorCode = 0x00000203
	ErrorCodeInvalid          ErrorCode = 0x00000204
)

// IsConnectionLevel reports whether this error code always terminates the
// connection when seen at stream 0 (spec.md §4.1 connection frame handler).
func (c ErrorCode) IsConnectionLevel() bool {
	switch c {
	case ErrorCodeInvalidSetup, ErrorCodeUnsupportedSetup, ErrorCodeRejectedSetup,
		ErrorCodeConnectionError, ErrorCodeRejectedResume:
		return true
	default:
		return false
	}
}
