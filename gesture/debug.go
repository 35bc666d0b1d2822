package gesture

var debugMsgFunc func(component, message string)

// SetDebugFunction wires the package's debug output into the caller's
// logger.
func SetDebugFunction(fn func(component, message string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}
