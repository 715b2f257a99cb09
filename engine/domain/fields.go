package domain

// NumericField describes a numeric form field and the feature it fills.
type NumericField struct {
	Field   string
	Feature string
	Default float64
	// Integer fields reject fractional input.
	Integer bool
}

// Form field names.
const (
	FieldPrice       = "price"
	FieldCarpetArea  = "carpet_area"
	FieldSuperArea   = "super_area"
	FieldBathroom    = "bathroom"
	FieldBalcony     = "balcony"
	FieldBHK         = "bhk"
	FieldStatus      = "status"
	FieldTransaction = "transaction"
	FieldFurnishing  = "furnishing"
	FieldFacing      = "facing"
	FieldOwnership   = "ownership"
	FieldLocation    = "location"
)

// Feature names used by the trained model.
const (
	FeaturePrice      = "Price (in rupees)"
	FeatureCarpetArea = "Carpet Area in sqft"
	FeatureSuperArea  = "Super Area in sqft"
	FeatureBathroom   = "Bathroom"
	FeatureBalcony    = "Balcony"
	FeatureBHK        = "BHK"

	// LocationPrefix prefixes the one-hot location features.
	LocationPrefix = "location_"
)

// NumericFields lists the numeric inputs in encoding order.
var NumericFields = []NumericField{
	{Field: FieldPrice, Feature: FeaturePrice, Default: 0},
	{Field: FieldCarpetArea, Feature: FeatureCarpetArea, Default: 0},
	{Field: FieldSuperArea, Feature: FeatureSuperArea, Default: 0},
	{Field: FieldBathroom, Feature: FeatureBathroom, Default: 1, Integer: true},
	{Field: FieldBalcony, Feature: FeatureBalcony, Default: 0, Integer: true},
	{Field: FieldBHK, Feature: FeatureBHK, Default: 1},
}

// FormFields lists every form field the encoder reads.
var FormFields = []string{
	FieldPrice, FieldCarpetArea, FieldSuperArea, FieldBathroom, FieldBalcony, FieldBHK,
	FieldStatus, FieldTransaction, FieldFurnishing, FieldFacing, FieldOwnership, FieldLocation,
}
