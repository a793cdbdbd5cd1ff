package weather

// Category is the symbolic weather bucket used to pick a display icon.
type Category string

const (
	CategoryCloud      Category = "cloud"
	CategoryClearDay   Category = "clear_day"
	CategoryClearNight Category = "clear_night"
	CategorySmoke      Category = "smoke"
	CategorySnow       Category = "snow"
	CategoryRain       Category = "rain"
	CategoryThunder    Category = "thunder"
)

// Categories lists every value MapCondition can return.
var Categories = []Category{
	CategoryCloud,
	CategoryClearDay,
	CategoryClearNight,
	CategorySmoke,
	CategorySnow,
	CategoryRain,
	CategoryThunder,
}

var symbols = map[Category]string{
	CategoryCloud:      "cloud.fill",
	CategoryClearDay:   "sun.max.fill",
	CategoryClearNight: "moon.fill",
	CategorySmoke:      "smoke.fill",
	CategorySnow:       "snowflake",
	CategoryRain:       "cloud.rain.fill",
	CategoryThunder:    "cloud.bolt.rain.fill",
}

// Symbol returns the icon name associated with the category.
func (c Category) Symbol() string {
	return symbols[c]
}

// MapCondition converts a weather-service condition code and the caller's
// local hour into a Category. The bands overlap at their edges; the first
// matching band below wins.
func MapCondition(code, localHour int) Category {
	switch {
	case code > 800:
		return CategoryCloud
	case code == 800:
		return clearSky(localHour)
	case code >= 700 && code <= 800:
		return CategorySmoke
	case code >= 600 && code <= 700:
		return CategorySnow
	case code >= 300 && code <= 600:
		return CategoryRain
	case code >= 200 && code <= 300:
		return CategoryThunder
	default:
		return clearSky(localHour)
	}
}

// IsNight reports whether the hour falls outside 05:00-16:59.
func IsNight(hour int) bool {
	return hour < 5 || hour > 16
}

func clearSky(hour int) Category {
	if IsNight(hour) {
		return CategoryClearNight
	}
	return CategoryClearDay
}
