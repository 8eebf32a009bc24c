// conf/consts.go hard coded limits
package conf

const (
	MinSampleRate = 8000
	MaxSampleRate = 384000
	MinBlockSize  = 16
	MaxBlockSize  = 8192
	MaxChannels   = 64
)
