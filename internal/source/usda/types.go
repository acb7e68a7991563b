package usda

import "strconv"

// searchResponse mirrors the USDA FoodData Central "foods/search"
// paginated search response.
type searchResponse struct {
	TotalPages int    `json:"totalPages"`
	Foods      []food `json:"foods"`
}

type food struct {
	FdcID          int            `json:"fdcId"`
	Description    string         `json:"description"`
	FoodCode       *int           `json:"foodCode"`
	FoodCategory   string         `json:"foodCategory"`
	FoodCategoryID *int           `json:"foodCategoryId"`
	FoodNutrients  []foodNutrient `json:"foodNutrients"`
}

type foodNutrient struct {
	NutrientName string   `json:"nutrientName"`
	UnitName     string   `json:"unitName"`
	Value        *float64 `json:"value"`
}

func (n foodNutrient) value() float64 {
	if n.Value == nil {
		return 0
	}
	return *n.Value
}

func (f food) foodCode() string {
	if f.FoodCode == nil {
		return ""
	}
	return strconv.Itoa(*f.FoodCode)
}

func (f food) foodCategoryID() string {
	if f.FoodCategoryID == nil {
		return ""
	}
	return strconv.Itoa(*f.FoodCategoryID)
}
