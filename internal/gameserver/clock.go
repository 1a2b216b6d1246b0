package gameserver

import (
	"fmt"
	"time"

	"github.com/cory-johannsen/subjugate/internal/game/dice"
	"github.com/cory-johannsen/subjugate/internal/protocol"
)

// TimePeriod is a named phase of the game day.
type TimePeriod string

const (
	PeriodMidnight  TimePeriod = "Midnight"
	PeriodLateNight TimePeriod = "Late Night"
	PeriodDawn      TimePeriod = "Dawn"
	PeriodMorning   TimePeriod = "Morning"
	PeriodAfternoon TimePeriod = "Afternoon"
	PeriodDusk      TimePeriod = "Dusk"
	PeriodEvening   TimePeriod = "Evening"
	PeriodNight     TimePeriod = "Night"
)

// GameHour is a game-clock hour in [0, 23].
type GameHour int32

// Period returns the named time period for this hour.
//
// Precondition: h is in [0, 23].
// Postcondition: Returns one of the eight TimePeriod constants.
func (h GameHour) Period() TimePeriod {
	switch {
	case h == 0:
		return PeriodMidnight
	case h >= 1 && h <= 4:
		return PeriodLateNight
	case h >= 5 && h <= 6:
		return PeriodDawn
	case h >= 7 && h <= 11:
		return PeriodMorning
	case h >= 12 && h <= 16:
		return PeriodAfternoon
	case h >= 17 && h <= 18:
		return PeriodDusk
	case h >= 19 && h <= 21:
		return PeriodEvening
	default: // 22-23
		return PeriodNight
	}
}

// String returns the hour in "HH:00" format.
func (h GameHour) String() string {
	return fmt.Sprintf("%02d:00", int(h))
}

// Weather is the current sky condition.
type Weather string

const (
	WeatherClear  Weather = "clear"
	WeatherCloudy Weather = "cloudy"
	WeatherRain   Weather = "rain"
	WeatherStorm  Weather = "storm"
	WeatherFog    Weather = "fog"
)

var weathers = []Weather{WeatherClear, WeatherCloudy, WeatherRain, WeatherStorm, WeatherFog}

const (
	// DefaultDayLength is the real time one game day takes.
	DefaultDayLength = time.Hour
	// DefaultWeatherInterval is how often the weather is re-rolled.
	DefaultWeatherInterval = 10 * time.Minute
)

// GameClock maps real time onto the game's day/night cycle and weather.
// It has no goroutine of its own; the scheduler calls Advance every tick.
type GameClock struct {
	start        time.Time
	startHour    GameHour
	hourLength   time.Duration
	weatherEvery time.Duration
	roller       *dice.Roller

	weather     Weather
	lastWeather time.Time
	lastHour    int64
}

// NewGameClock creates a clock reading startHour at start.
//
// Precondition: startHour in [0, 23]; dayLength >= 24ns; weatherEvery > 0;
// roller must be non-nil.
func NewGameClock(start time.Time, startHour GameHour, dayLength, weatherEvery time.Duration, roller *dice.Roller) *GameClock {
	c := &GameClock{
		start:        start,
		startHour:    startHour % 24,
		hourLength:   dayLength / 24,
		weatherEvery: weatherEvery,
		roller:       roller,
		weather:      WeatherClear,
		lastWeather:  start,
	}
	c.lastHour = c.absoluteHour(start)
	return c
}

func (c *GameClock) absoluteHour(now time.Time) int64 {
	return int64(c.startHour) + int64(now.Sub(c.start)/c.hourLength)
}

// Hour returns the in-game hour at now.
func (c *GameClock) Hour(now time.Time) GameHour {
	return GameHour(c.absoluteHour(now) % 24)
}

// Day returns the 1-based in-game day at now.
func (c *GameClock) Day(now time.Time) int {
	return int(c.absoluteHour(now)/24) + 1
}

// TimeOfDay returns the fraction of the in-game day elapsed at now, in [0, 1).
func (c *GameClock) TimeOfDay(now time.Time) float64 {
	day := 24 * c.hourLength
	into := (time.Duration(c.startHour)*c.hourLength + now.Sub(c.start)) % day
	return float64(into) / float64(day)
}

// IsNight reports whether now falls in the first or last quarter of the day.
func (c *GameClock) IsNight(now time.Time) bool {
	tod := c.TimeOfDay(now)
	return tod < 0.25 || tod > 0.75
}

// Light returns the ambient light level for a time of day: 0.3 at midnight
// rising linearly to 1.0 at noon and falling back.
func Light(tod float64) float64 {
	if tod < 0.5 {
		return 0.3 + tod*2*0.7
	}
	return 1 - (tod-0.5)*2*0.7
}

// Weather returns the current weather.
func (c *GameClock) Weather() Weather { return c.weather }

// Advance re-rolls the weather once its interval has passed and reports
// whether a new in-game hour began since the previous call.
func (c *GameClock) Advance(now time.Time) bool {
	if now.Sub(c.lastWeather) >= c.weatherEvery {
		c.lastWeather = now
		c.weather = weathers[c.roller.Intn(len(weathers))]
	}
	h := c.absoluteHour(now)
	if h == c.lastHour {
		return false
	}
	c.lastHour = h
	return true
}

// Notice renders the clock state at now for TimeUpdate and WeatherUpdate packets.
func (c *GameClock) Notice(now time.Time) protocol.ClockNotice {
	return protocol.ClockNotice{
		Day:     c.Day(now),
		Hour:    int(c.Hour(now)),
		Night:   c.IsNight(now),
		Light:   Light(c.TimeOfDay(now)),
		Weather: string(c.weather),
	}
}
