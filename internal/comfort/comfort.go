// Package comfort derives the Temperature-Humidity Index and a discrete
// comfort level from a temperature/humidity pair.
package comfort

type Level string

const (
	VeryCold    Level = "VeryCold"
	Cool        Level = "Cool"
	Comfortable Level = "Comfortable"
	Warm        Level = "Warm"
	Hot         Level = "Hot"
	VeryHot     Level = "VeryHot"
)

// Classification is the comfort verdict for one temperature/humidity pair.
type Classification struct {
	THI         float64 `json:"thi"`
	Level       Level   `json:"level"`
	Description string  `json:"description"`
}

// Upper bounds are exclusive; the first match wins.
var thresholds = []struct {
	below float64
	level Level
	desc  string
}{
	{15, VeryCold, "Uncomfortably cold"},
	{20, Cool, "Slightly cool"},
	{26, Comfortable, "Perfect comfort"},
	{30, Warm, "Slightly warm"},
	{35, Hot, "Uncomfortably hot"},
}

// THI returns t - 0.55*(1 - h/100)*(t - 14.5), with t in °C and h in %RH.
func THI(temperature, humidity float64) float64 {
	return temperature - 0.55*(1-humidity/100)*(temperature-14.5)
}

// Classify returns nil when either input is missing. It never substitutes a default.
func Classify(temperature, humidity *float64) *Classification {
	if temperature == nil || humidity == nil {
		return nil
	}
	thi := THI(*temperature, *humidity)
	for _, th := range thresholds {
		if thi < th.below {
			return &Classification{THI: thi, Level: th.level, Description: th.desc}
		}
	}
	return &Classification{THI: thi, Level: VeryHot, Description: "Dangerously hot"}
}
