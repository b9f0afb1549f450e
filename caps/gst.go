package caps

import "github.com/tinyzimmer/go-gst/gst"

// Caps converts the descriptor into engine caps.
func (d FormatDescriptor) Caps() *gst.Caps {
	return gst.NewCapsFromString(d.String())
}

// AnyVideoCaps returns AnyVideo as engine caps.
func AnyVideoCaps() *gst.Caps {
	return gst.NewCapsFromString(AnyVideo())
}

// AnyAudioCaps returns AnyAudio as engine caps.
func AnyAudioCaps() *gst.Caps {
	return gst.NewCapsFromString(AnyAudio())
}

// AnyVideoAudioCaps returns AnyVideoAudio as engine caps.
func AnyVideoAudioCaps() *gst.Caps {
	caps := AnyVideoCaps()
	caps.Append(AnyAudioCaps())
	return caps
}
