package logging

// LogEvent is the structured log key that tags records marking registry
// state transitions, so that log consumers can match them without parsing
// messages.
//
// Event values are defined next to the module that emits them.
const LogEvent = "log_event"
