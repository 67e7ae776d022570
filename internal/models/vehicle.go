package models

// Vehicle is a registry record documents are linked against
type Vehicle struct {
	ID    string `json:"id"`
	VRN   string `json:"vrn"`
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Year  int    `json:"year,omitempty"`
}

// VehicleDetails carries the optional fields supplied when creating a
// vehicle record during create-and-link
type VehicleDetails struct {
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Year  int    `json:"year,omitempty"`
}
