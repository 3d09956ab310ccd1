package model

// Socket events shared by the server fan-out and the client synchronizer.
const (
	EventConnected       = "connected"
	EventDisconnect      = "disconnect"
	EventJoinChat        = "joinChat"
	EventLeaveChat       = "leaveChat"
	EventUpdateGroupName = "updateGroupName"
	EventMessageReceived = "messageReceived"
	EventNewChat         = "newChat"
	EventSocketError     = "socketError"
	EventStopTyping      = "stopTyping"
	EventTyping          = "typing"
	EventMessageDeleted  = "messageDeleted"
)
