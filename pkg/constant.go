package pkg

// enum of transport mode, bit flags so a request can ask for several at once
type TransportMode uint8

const (
	MODE_TRAM      TransportMode = 1
	MODE_SUBWAY    TransportMode = 2
	MODE_RAIL      TransportMode = 4
	MODE_BUS       TransportMode = 8
	MODE_FERRY     TransportMode = 16
	MODE_CABLECAR  TransportMode = 32
	MODE_GONDOLA   TransportMode = 64
	MODE_FUNICULAR TransportMode = 128
	MODE_ALL       TransportMode = 255
)

// vehicle journey attributes
type VJAttribute uint8

const (
	VJA_NONE       VJAttribute = 0
	VJA_ACCESSIBLE VJAttribute = 1
	VJA_TOILET     VJAttribute = 2
	VJA_WIFI       VJAttribute = 4
	VJA_CANCELED   VJAttribute = 128
)

// journey pattern point attributes
type JPPAttribute uint8

const (
	JPP_NONE         JPPAttribute = 0
	JPP_WAITINGPOINT JPPAttribute = 1
	JPP_BOARDING     JPPAttribute = 2
	JPP_ALIGHTING    JPPAttribute = 4
)

// optimisation criteria used to select itineraries out of a plan
type Optimise uint8

const (
	OPTIMISE_SHORTEST  Optimise = 1
	OPTIMISE_TRANSFERS Optimise = 2
	OPTIMISE_ALL       Optimise = 255
)

const (
	// number of rounds, a round is one ride followed by a walk. 6 rounds = 5 transfers.
	MAX_ROUNDS = 6

	DEFAULT_WALK_SPEED        = 1.5 // m/s
	DEFAULT_WALK_SLACK        = 0   // seconds
	DEFAULT_WALK_MAX_DISTANCE = 500 // meter
	DEFAULT_MAX_TRANSFERS     = 5

	// straight line distance to street distance factor
	WALK_COMP = 1.2

	MAX_BANNED_JOURNEY_PATTERNS = 1
	MAX_BANNED_STOP_POINTS      = 1
	MAX_BANNED_STOP_POINTS_HARD = 1
	MAX_BANNED_VEHICLE_JOURNEYS = 1

	// size of a coordinate/area entry set
	MAX_ENTRY_STOPS = 20

	MIN_WALK_SPEED = 0.1
)

var modeNames = map[string]TransportMode{
	"tram":      MODE_TRAM,
	"subway":    MODE_SUBWAY,
	"rail":      MODE_RAIL,
	"bus":       MODE_BUS,
	"ferry":     MODE_FERRY,
	"cablecar":  MODE_CABLECAR,
	"gondola":   MODE_GONDOLA,
	"funicular": MODE_FUNICULAR,
	"all":       MODE_ALL,
}

func GetTransportMode(mode string) (TransportMode, bool) {
	m, ok := modeNames[mode]
	return m, ok
}

func (m TransportMode) String() string {
	switch m {
	case MODE_TRAM:
		return "tram"
	case MODE_SUBWAY:
		return "subway"
	case MODE_RAIL:
		return "rail"
	case MODE_BUS:
		return "bus"
	case MODE_FERRY:
		return "ferry"
	case MODE_CABLECAR:
		return "cablecar"
	case MODE_GONDOLA:
		return "gondola"
	case MODE_FUNICULAR:
		return "funicular"
	case MODE_ALL:
		return "all"
	default:
		return "mixed"
	}
}

func GetOptimise(optimise string) (Optimise, bool) {
	switch optimise {
	case "shortest":
		return OPTIMISE_SHORTEST, true
	case "transfers":
		return OPTIMISE_TRANSFERS, true
	case "all", "":
		return OPTIMISE_ALL, true
	default:
		return 0, false
	}
}
