package weather

// Unit conversions applied at the presentation boundary. Canonical storage
// is always metric (degC, km/h, meters).

// CelsiusToFahrenheit converts degrees Celsius to Fahrenheit.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9.0/5.0 + 32.0
}

// FahrenheitToCelsius converts degrees Fahrenheit to Celsius.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32.0) * 5.0 / 9.0
}

// KmhToMph converts kilometers per hour to miles per hour.
func KmhToMph(kmh float64) float64 {
	return kmh * 0.621371
}

// MetersToMiles converts meters to miles.
func MetersToMiles(m float64) float64 {
	return m * 0.000621371
}

// MetersToKm converts meters to kilometers.
func MetersToKm(m float64) float64 {
	return m / 1000.0
}

// ConvertUnits returns a copy of the data expressed in the requested unit
// system. The receiver is not modified; canonical metric data stays in the
// caches untouched.
func (w *WeatherData) ConvertUnits(imperial bool) *WeatherData {
	out := *w
	if !imperial {
		out.Units = "metric"
		return &out
	}

	out.Units = "imperial"
	out.Current.Temp = CelsiusToFahrenheit(w.Current.Temp)
	out.Current.FeelsLike = CelsiusToFahrenheit(w.Current.FeelsLike)
	out.Current.WindSpeed = KmhToMph(w.Current.WindSpeed)
	out.Current.Visibility = MetersToMiles(w.Current.Visibility)

	out.Daily = make([]DailyForecast, len(w.Daily))
	for i, d := range w.Daily {
		d.TempMin = CelsiusToFahrenheit(d.TempMin)
		d.TempMax = CelsiusToFahrenheit(d.TempMax)
		d.TempMean = CelsiusToFahrenheit(d.TempMean)
		out.Daily[i] = d
	}
	return &out
}
