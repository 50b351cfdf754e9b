// Package protocol holds the wire-level constants shared by internal/httpapi
// that don't belong to any one moonlightcore subpackage: the serverinfo
// codec-support bitmask (distinct from the SupportedVideoFormats bitmask
// negotiated during the RTSP handshake) and human-readable stage names for
// lifecycle logging.
package protocol

// Server codec mode support flags, as reported in serverinfo's
// server_codec_mode_support field. Separate from the SupportedVideoFormats
// bitmask moonlightcore negotiates during the RTSP handshake: this one
// describes what the host is willing to encode before a session even starts.
const (
	SCMH264       = 0x00000001
	SCMHEVC       = 0x00000100
	SCMHEVCMain10 = 0x00000200
	SCMAV1Main8   = 0x00010000 // Sunshine extension
	SCMAV1Main10  = 0x00020000 // Sunshine extension
)

// stageNames mirrors the iota order of moonlightcore/types.Stage exactly
// (that type carries no String method of its own): none, platform init,
// RTSP handshake, control/video/audio/input stream init, then
// control/video/audio/input stream start, then complete.
var stageNames = []string{
	"none",
	"platform initialization",
	"RTSP handshake",
	"control stream initialization",
	"video stream initialization",
	"audio stream initialization",
	"input stream initialization",
	"control stream start",
	"video stream start",
	"audio stream start",
	"input stream start",
	"complete",
}

// StageName returns a human-readable name for a connection stage, or
// "unknown" for a value outside the known range.
func StageName(stage int) string {
	if stage >= 0 && stage < len(stageNames) {
		return stageNames[stage]
	}
	return "unknown"
}

// SupportsCodec reports whether a serverinfo codec-support bitmask
// advertises the given SCM* flag.
func SupportsCodec(serverCodecModeSupport uint32, flag int) bool {
	return serverCodecModeSupport&uint32(flag) != 0
}
