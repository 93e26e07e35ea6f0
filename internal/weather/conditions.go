package weather

// conditionEntry holds the day and night variants for one WMO weather code.
type conditionEntry struct {
	main        string
	description string
	dayIcon     string
	nightIcon   string
}

// WMO weather interpretation codes (WW) as returned by Open-Meteo.
var conditionTable = map[int]conditionEntry{
	0:  {"Clear", "Clear sky", "01d", "01n"},
	1:  {"Clear", "Mainly clear", "01d", "01n"},
	2:  {"Clouds", "Partly cloudy", "02d", "02n"},
	3:  {"Clouds", "Overcast", "03d", "03n"},
	45: {"Mist", "Foggy", "50d", "50n"},
	48: {"Mist", "Depositing rime fog", "50d", "50n"},
	51: {"Drizzle", "Light drizzle", "09d", "09n"},
	53: {"Drizzle", "Moderate drizzle", "09d", "09n"},
	55: {"Drizzle", "Dense drizzle", "09d", "09n"},
	61: {"Rain", "Slight rain", "10d", "10n"},
	63: {"Rain", "Moderate rain", "10d", "10n"},
	65: {"Rain", "Heavy rain", "10d", "10n"},
	66: {"Rain", "Freezing rain", "10d", "10n"},
	67: {"Rain", "Freezing rain", "10d", "10n"},
	71: {"Snow", "Slight snow", "13d", "13n"},
	73: {"Snow", "Moderate snow", "13d", "13n"},
	75: {"Snow", "Heavy snow", "13d", "13n"},
	77: {"Snow", "Snow grains", "13d", "13n"},
	80: {"Rain", "Slight rain showers", "09d", "09n"},
	81: {"Rain", "Moderate rain showers", "09d", "09n"},
	82: {"Rain", "Violent rain showers", "09d", "09n"},
	85: {"Snow", "Slight snow showers", "13d", "13n"},
	86: {"Snow", "Heavy snow showers", "13d", "13n"},
	95: {"Thunderstorm", "Thunderstorm", "11d", "11n"},
	96: {"Thunderstorm", "Thunderstorm with light hail", "11d", "11n"},
	99: {"Thunderstorm", "Thunderstorm with heavy hail", "11d", "11n"},
}

var unknownCondition = conditionEntry{"Unknown", "Unknown", "01d", "01n"}

// MapConditionCode maps a provider weather code and day/night flag to a
// condition. The mapping is total: unrecognized codes resolve to the
// "Unknown" entry rather than failing.
func MapConditionCode(code int, isDay bool) WeatherCondition {
	entry, ok := conditionTable[code]
	if !ok {
		entry = unknownCondition
	}

	icon := entry.dayIcon
	if !isDay {
		icon = entry.nightIcon
	}

	return WeatherCondition{
		Code:        code,
		Main:        entry.main,
		Description: entry.description,
		Icon:        icon,
	}
}
