package model

// District category values recognized by the extraction prompt. The store
// columns are free text; these are the vocabulary the model is asked to use.
const (
	CategoryResidential   = "residential"
	CategoryCommercial    = "commercial"
	CategoryIndustrial    = "industrial"
	CategoryAgricultural  = "agricultural"
	CategoryMixedUse      = "mixed_use"
	CategoryInstitutional = "institutional"
	CategoryConservation  = "conservation"
	CategorySpecial       = "special"
	CategoryOther         = "other"
)

// Permission type values for permitted uses.
const (
	PermissionPermitted        = "permitted"
	PermissionConditional      = "conditional"
	PermissionProhibited       = "prohibited"
	PermissionSpecialException = "special_exception"
)

// StandardTypes lists the dimensional standard identifiers the extraction
// prompt asks for.
var StandardTypes = []string{
	"setback_front", "setback_side", "setback_rear", "max_height",
	"min_lot_size", "max_lot_coverage", "max_far", "min_unit_size",
	"parking_spaces",
}

// District is one zoning district as extracted from a county portal.
type District struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Standard is one dimensional standard tied to a district by code.
type Standard struct {
	DistrictCode string `json:"district_code"`
	StandardType string `json:"standard_type"`
	Value        any    `json:"value"`
	Unit         string `json:"unit"`
	Notes        string `json:"notes"`
}

// PermittedUse is one land-use entry tied to a district by code.
type PermittedUse struct {
	DistrictCode   string `json:"district_code"`
	UseName        string `json:"use_name"`
	PermissionType string `json:"permission_type"`
	UseCategory    string `json:"use_category"`
}

// ExtractedData is the fixed shape every extraction mode produces.
type ExtractedData struct {
	Districts []District     `json:"districts"`
	Standards []Standard     `json:"standards"`
	Uses      []PermittedUse `json:"uses"`
}

// HasData reports whether the extraction found anything worth persisting.
// Uses alone do not count; they cannot be attached without districts.
func (e *ExtractedData) HasData() bool {
	if e == nil {
		return false
	}
	return len(e.Districts) > 0 || len(e.Standards) > 0
}
