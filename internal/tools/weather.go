package tools

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// WeatherTool is a mock lookup: conditions come from a fixed table plus a
// deterministic per-city fallback, so replies are stable across runs without
// any network dependency.
type WeatherTool struct{}

func NewWeatherTool() *WeatherTool { return &WeatherTool{} }

var weatherTable = map[string]string{
	"hanoi":         "31°C, humid, scattered thunderstorms",
	"ho chi minh":   "33°C, partly cloudy, chance of evening rain",
	"singapore":     "30°C, humid, light showers",
	"tokyo":         "24°C, clear skies",
	"london":        "14°C, overcast with drizzle",
	"new york":      "18°C, partly cloudy",
	"san francisco": "16°C, fog clearing by noon",
	"sydney":        "21°C, sunny",
	"berlin":        "12°C, light rain",
	"paris":         "15°C, cloudy",
}

var weatherFallbacks = []string{
	"22°C, mostly sunny",
	"17°C, overcast",
	"26°C, scattered clouds",
	"9°C, cold and clear",
	"28°C, humid with a light breeze",
}

func (t *WeatherTool) Name() string { return "weather" }

func (t *WeatherTool) Description() string {
	return "Look up current weather conditions for a city."
}

func (t *WeatherTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"city": map[string]interface{}{
				"type":        "string",
				"description": "City name, e.g. \"Hanoi\"",
			},
		},
		"required": []string{"city"},
	}
}

func (t *WeatherTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	city, _ := args["city"].(string)
	city = strings.TrimSpace(city)
	if city == "" {
		return ErrorResult("weather: missing required argument: city")
	}

	key := strings.ToLower(city)
	conditions, ok := weatherTable[key]
	if !ok {
		h := fnv.New32a()
		h.Write([]byte(key))
		conditions = weatherFallbacks[h.Sum32()%uint32(len(weatherFallbacks))]
	}
	return NewResult(fmt.Sprintf("Weather in %s: %s", city, conditions))
}
