package normalize

// Roster normalization reuses the same alias-driven extraction as webhook
// events; the provider's roster endpoints are just as loosely shaped.

// RosterVehicle is a normalized vehicle record from the fleet API roster
type RosterVehicle struct {
	TrackingSerial string
	VIN            string
	LicensePlate   string
	DisplayName    string
	Make           string
	Model          string
	Year           int
}

// RosterDriver is a normalized driver record from the fleet API roster
type RosterDriver struct {
	ExternalID    string
	Email         string
	FirstName     string
	LastName      string
	Phone         string
	LicenseNumber string
}

var (
	vinAliases         = []string{"vin", "VIN", "vehicleVin"}
	plateAliases       = []string{"licensePlate", "license_plate", "plateNumber", "tagNumber"}
	vehicleNameAliases = []string{"vehicleName", "name", "displayName", "label"}
	makeAliases        = []string{"make", "vehicleMake"}
	modelAliases       = []string{"model", "vehicleModel"}
	yearAliases        = []string{"year", "modelYear"}
	driverIDAliases    = []string{"driverId", "driver_id", "id", "externalId"}
	emailAliases       = []string{"email", "emailAddress", "email_address"}
	firstNameAliases   = []string{"firstName", "first_name", "givenName"}
	lastNameAliases    = []string{"lastName", "last_name", "surname"}
	phoneAliases       = []string{"phone", "phoneNumber", "mobile"}
	licenseNumAliases  = []string{"licenseNumber", "license_number", "dlNumber"}
)

// NormalizeVehicle maps a raw roster item into a vehicle record. The tracking
// serial shares the webhook vehicle key aliases so both paths agree on
// identity.
func (n *Normalizer) NormalizeVehicle(item map[string]interface{}) RosterVehicle {
	v := RosterVehicle{}
	v.TrackingSerial, _ = stringField(item, vehicleKeyAliases)
	v.VIN, _ = stringField(item, vinAliases)
	v.LicensePlate, _ = stringField(item, plateAliases)
	v.DisplayName, _ = stringField(item, vehicleNameAliases)
	v.Make, _ = stringField(item, makeAliases)
	v.Model, _ = stringField(item, modelAliases)
	if year, ok := floatField(item, yearAliases); ok && year > 0 {
		v.Year = int(year)
	}
	return v
}

// NormalizeDriver maps a raw roster item into a driver record
func (n *Normalizer) NormalizeDriver(item map[string]interface{}) RosterDriver {
	d := RosterDriver{}
	d.ExternalID, _ = stringField(item, driverIDAliases)
	d.Email, _ = stringField(item, emailAliases)
	d.FirstName, _ = stringField(item, firstNameAliases)
	d.LastName, _ = stringField(item, lastNameAliases)
	d.Phone, _ = stringField(item, phoneAliases)
	d.LicenseNumber, _ = stringField(item, licenseNumAliases)
	return d
}
