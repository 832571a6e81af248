package api

import "time"

// ApiResponse is the envelope of every response
type ApiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ChannelInfo is one channel's playback state
type ChannelInfo struct {
	Channel     int     `json:"channel"`
	Name        string  `json:"name,omitempty"`
	State       string  `json:"state"`
	Angle       float64 `json:"angle"`
	Segment     int     `json:"segment"`
	GroupMember bool    `json:"group_member"`
	Loaded      bool    `json:"loaded"`
}

// Status is the controller state published by the control loop
type Status struct {
	ActiveChannels int           `json:"active_channels"`
	Playing        bool          `json:"playing"`
	Loaded         []int         `json:"loaded"`
	Channels       []ChannelInfo `json:"channels"`
	Updated        time.Time     `json:"updated"`
}

// CommandRequest carries one command line
type CommandRequest struct {
	Line string `json:"line" binding:"required"`
}
