package web

import (
	"time"

	"github.com/Bucknalla/nmea-gps-emulator/gps"
)

// parseConfig overlays the keys present in jsonConfig on base. Durations
// are Go duration strings such as "500ms"; values of the wrong type are
// ignored.
func parseConfig(base gps.Config, jsonConfig map[string]interface{}) gps.Config {
	config := base

	getFloat := func(m map[string]interface{}, key string, defaultValue float64) float64 {
		if val, ok := m[key]; ok {
			if f, ok := val.(float64); ok {
				return f
			}
		}
		return defaultValue
	}

	getInt := func(m map[string]interface{}, key string, defaultValue int) int {
		if val, ok := m[key]; ok {
			if f, ok := val.(float64); ok {
				return int(f)
			}
		}
		return defaultValue
	}

	getBool := func(key string, defaultValue bool) bool {
		if val, ok := jsonConfig[key]; ok {
			if b, ok := val.(bool); ok {
				return b
			}
		}
		return defaultValue
	}

	getString := func(key string, defaultValue string) string {
		if val, ok := jsonConfig[key]; ok {
			if s, ok := val.(string); ok {
				return s
			}
		}
		return defaultValue
	}

	getDuration := func(key string, defaultValue time.Duration) time.Duration {
		if val, ok := jsonConfig[key]; ok {
			if s, ok := val.(string); ok {
				if d, err := time.ParseDuration(s); err == nil {
					return d
				}
			}
		}
		return defaultValue
	}

	config.Latitude = getFloat(jsonConfig, "latitude", config.Latitude)
	config.Longitude = getFloat(jsonConfig, "longitude", config.Longitude)
	config.Altitude = getFloat(jsonConfig, "altitude", config.Altitude)
	config.Speed = getFloat(jsonConfig, "speed", config.Speed)
	config.Course = getFloat(jsonConfig, "course", config.Course)
	config.Talker = getString("talker", config.Talker)
	config.Seed = int64(getInt(jsonConfig, "seed", int(config.Seed)))
	config.PDOP = getFloat(jsonConfig, "pdop", config.PDOP)
	config.HDOP = getFloat(jsonConfig, "hdop", config.HDOP)
	config.VDOP = getFloat(jsonConfig, "vdop", config.VDOP)
	config.GeoidSeparation = getFloat(jsonConfig, "geoid_separation", config.GeoidSeparation)
	config.Differential = getBool("differential", config.Differential)
	config.TimeToLock = getDuration("time_to_lock", config.TimeToLock)
	config.OutputRate = getDuration("output_rate", config.OutputRate)
	config.WallClock = getBool("wall_clock", config.WallClock)
	config.VTG = getBool("vtg", config.VTG)
	config.Duration = getDuration("duration", config.Duration)
	config.GPXEnabled = getBool("gpx_enabled", config.GPXEnabled)
	config.GPXFile = getString("gpx_file", config.GPXFile)
	config.ReplayFile = getString("replay_file", config.ReplayFile)
	config.ReplaySpeed = getFloat(jsonConfig, "replay_speed", config.ReplaySpeed)
	config.ReplayLoop = getBool("replay_loop", config.ReplayLoop)
	config.Quiet = getBool("quiet", config.Quiet)

	if sats, ok := jsonConfig["satellites"].(map[string]interface{}); ok {
		config.Satellites.Initial = getInt(sats, "initial", config.Satellites.Initial)
		config.Satellites.MaxVisible = getInt(sats, "max_visible", config.Satellites.MaxVisible)
		config.Satellites.MinUsed = getInt(sats, "min_used", config.Satellites.MinUsed)
		config.Satellites.MinSNR = getInt(sats, "min_snr", config.Satellites.MinSNR)
		config.Satellites.MaxSNR = getInt(sats, "max_snr", config.Satellites.MaxSNR)
	}

	return config
}
