package vacancies

// Vacancy is one open position as read from the catalog source. Immutable after load.
type Vacancy struct {
	Name              string
	SuitabilityNeeded string
	Requirements      []string
	PlusDetails       []string
	Notes             string
}

// sourceVacancy mirrors the on-disk document layout.
type sourceVacancy struct {
	Name              *string             `json:"name" yaml:"name"`
	SuitabilityNeeded string              `json:"suitability_needed" yaml:"suitability_needed"`
	Description       []sourceDescription `json:"description" yaml:"description"`
	WouldBePlus       []sourcePlus        `json:"would_be_plus" yaml:"would_be_plus"`
	Notes             string              `json:"notes" yaml:"notes"`
}

type sourceDescription struct {
	Requirements []string `json:"requirements" yaml:"requirements"`
}

type sourcePlus struct {
	Details []string `json:"details" yaml:"details"`
}
