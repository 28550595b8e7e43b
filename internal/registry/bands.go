package registry

// Band is a frequency-band preset for the sensor capability. The
// center frequency is what rtl_433 tunes by default; hop channels can
// be added as extra tuning targets.
type Band struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	FrequencyMHz float64    `json:"frequencyMhz"`
	RangeMHz     [2]float64 `json:"rangeMhz"`
	ChannelsMHz  []float64  `json:"channelsMhz"`
}

var bands = []Band{
	{
		ID: "eu868", Name: "EU 868 MHz", FrequencyMHz: 868.0,
		RangeMHz:    [2]float64{863.0, 870.0},
		ChannelsMHz: []float64{868.1, 868.3, 868.5, 867.1, 867.3, 867.5, 867.7, 867.9},
	},
	{
		ID: "us915", Name: "US 915 MHz", FrequencyMHz: 915.0,
		RangeMHz:    [2]float64{902.0, 928.0},
		ChannelsMHz: []float64{902.3, 902.5, 902.7, 902.9, 903.1, 903.3, 903.5, 903.7},
	},
	{
		ID: "au915", Name: "AU 915 MHz", FrequencyMHz: 915.0,
		RangeMHz:    [2]float64{915.0, 928.0},
		ChannelsMHz: []float64{915.2, 915.4, 915.6, 915.8, 916.0, 916.2, 916.4, 916.6},
	},
	{
		ID: "as923", Name: "AS 923 MHz", FrequencyMHz: 923.0,
		RangeMHz:    [2]float64{920.0, 925.0},
		ChannelsMHz: []float64{923.2, 923.4, 923.6, 923.8, 924.0, 924.2, 924.4, 924.6},
	},
	{
		ID: "in865", Name: "IN 865 MHz", FrequencyMHz: 865.0,
		RangeMHz:    [2]float64{865.0, 867.0},
		ChannelsMHz: []float64{865.0625, 865.4025, 865.985},
	},
	{
		ID: "ism433", Name: "ISM 433 MHz", FrequencyMHz: 433.92,
		RangeMHz:    [2]float64{433.05, 434.79},
		ChannelsMHz: []float64{433.05, 433.42, 433.92, 434.42},
	},
}

// Bands lists the sensor band presets in a stable order.
func Bands() []Band {
	return bands
}

// BandByID looks up a preset; ok is false for unknown ids.
func BandByID(id string) (Band, bool) {
	for _, b := range bands {
		if b.ID == id {
			return b, true
		}
	}
	return Band{}, false
}
