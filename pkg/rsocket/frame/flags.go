package frame

// Flags is the 10-bit flags field common to every frame header.
type Flags uint16

const (
	FlagMetadata     Flags = 0x0100
	FlagResumeEnable Flags = 0x0080
	FlagRespond      Flags = 0x0080 // KEEPALIVE reuses the RESUME_ENABLE bit position for RESPOND
	FlagLease        Flags = 0x0040
	FlagFollows      Flags = 0x0080
	FlagComplete     Flags = 0x0040
	FlagNext         Flags = 0x0020
	FlagEmpty        Flags = 0x0000
)

// Has reports whether all bits of want are set.
func (f Flags) Has(want Flags) bool { return f&want == want }
