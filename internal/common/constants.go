package common

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvArtifactPath    = "ARTIFACT_PATH"
	EnvReferencePath   = "REFERENCE_PATH"
	EnvDatasetPath     = "DATASET_PATH"
	EnvHTTPPort        = "HTTP_PORT"
	EnvMetricsPort     = "METRICS_PORT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvExchangeRate    = "GBP_TO_INR"
	EnvKmPerMile       = "KM_PER_MILE"
	EnvUKDefaultTax    = "UK_DEFAULT_TAX"
	EnvUKDefaultMPG    = "UK_DEFAULT_MPG"
	EnvINDefaultTax    = "IN_DEFAULT_TAX"
	EnvINDefaultMPG    = "IN_DEFAULT_MPG"
	EnvEngineTolerance = "ENGINE_TOLERANCE"
	EnvMinComparables  = "MIN_COMPARABLES"
	EnvVerdictBand     = "VERDICT_BAND"
	EnvTrees           = "FOREST_TREES"
	EnvSeed            = "FOREST_SEED"
	EnvMaxDepth        = "FOREST_MAX_DEPTH"
	EnvMinSamplesLeaf  = "FOREST_MIN_SAMPLES_LEAF"
	EnvSampleSize      = "REFERENCE_SAMPLE_SIZE"
	EnvServerURL       = "AUTOVALUATE_URL"
)

// Configuration defaults
const (
	DefaultArtifactPath    = "models/car_price_model.db"
	DefaultReferencePath   = "data/reference_data.csv"
	DefaultDatasetPath     = "data/used_cars_combined.csv"
	DefaultHTTPPort        = 8501
	DefaultMetricsPort     = 9090
	DefaultLogLevel        = "info"
	DefaultExchangeRate    = 110.0 // GBP -> INR
	DefaultKmPerMile       = 1.609
	DefaultTax             = 145.0
	DefaultMPG             = 50.0
	DefaultEngineTolerance = 0.2
	DefaultMinComparables  = 6
	DefaultVerdictBand     = 0.10 // +-10% around the market mean
	DefaultTrees           = 100
	DefaultSeed            = 42
	DefaultMaxDepth        = 0 // unlimited
	DefaultMinSamplesLeaf  = 1
	DefaultSampleSize      = 2000
	DefaultServerURL       = "http://localhost:8501"
)

// Dataset columns
const (
	ColPrice        = "price"
	ColBrand        = "brand"
	ColModel        = "model"
	ColTransmission = "transmission"
	ColFuelType     = "fuelType"
	ColYear         = "year"
	ColMileage      = "mileage"
	ColTax          = "tax"
	ColMPG          = "mpg"
	ColEngineSize   = "engineSize"
)

// NumericColumns are the raw numeric attributes fed to the model unchanged.
var NumericColumns = []string{ColYear, ColMileage, ColTax, ColMPG, ColEngineSize}

// CategoricalColumns are one-hot encoded, in this order.
var CategoricalColumns = []string{ColBrand, ColModel, ColTransmission, ColFuelType}

// Closed input sets offered by the dashboard
var (
	Brands        = []string{"Audi", "BMW", "Ford", "Hyundai", "Mercedes", "Skoda", "Toyota", "Volkswagen", "Vauxhall"}
	Transmissions = []string{"Manual", "Automatic", "Semi-Auto"}
	FuelTypes     = []string{"Petrol", "Diesel", "Hybrid"}
	EngineSizes   = []float64{0.8, 1.0, 1.2, 1.4, 1.5, 1.6, 1.8, 2.0, 2.2, 2.5, 3.0, 4.0, 5.0, 6.0}
)

// Query bounds
const (
	MinYear          = 2005
	MaxYear          = 2025
	DefaultYear      = 2019
	DefaultEngine    = 1.5
	MaxUKDistance    = 200000 // miles
	MaxINDistance    = 300000 // km
	DefaultUKMileage = 30000
	DefaultINKm      = 50000
)

// Display
const (
	LakhThreshold = 100000.0
	LakhDivisor   = 100000.0
)

// Common error messages
const (
	ErrMsgOffline = "System offline. Run the trainer (go run ./cmd/trainer) to build the model artifacts."
)

// Validation constants
const (
	MinPort          = 1024
	MaxPort          = 65535
	MaxTrees         = 1000
	MaxSampleSize    = 1000000
	MaxExchangeRate  = 10000.0
	MaxTolerance     = 5.0
	MaxVerdictBand   = 0.9
	MaxMinComparable = 10000
)
