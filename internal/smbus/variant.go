package smbus

// Variant is the detected host board family. It matters twice: Xcalibur
// boards wedge on repeated-start reads, and their controller answers more
// reliably to a single unfiltered sample than to a median burst.
type Variant int

const (
	VariantUnknown Variant = iota
	VariantStandard
	VariantXcalibur
)

func (v Variant) String() string {
	switch v {
	case VariantStandard:
		return "standard"
	case VariantXcalibur:
		return "xcalibur"
	default:
		return "unknown"
	}
}

// XcaliburProbeAddr is the video encoder address present only on Xcalibur
// boards; an ACK there identifies the family.
const XcaliburProbeAddr uint16 = 0x70
