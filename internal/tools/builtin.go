package tools

// RegisterBuiltins adds the standard tool set to a registry. Web search is
// registered separately from the offline tools since it does real network
// I/O and can be disabled in config.
func RegisterBuiltins(reg *Registry, webSearch bool) {
	reg.Register(NewCalculatorTool())
	reg.Register(NewClockTool())
	reg.Register(NewWeatherTool())
	if webSearch {
		reg.Register(NewWebSearchTool())
	}
}
