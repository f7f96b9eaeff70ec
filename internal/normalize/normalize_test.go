package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TalkingHeadsJed/texasmotels/internal/model"
)

func TestName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "Desert Rose Motel", "desert rose motel"},
		{"entity suffix", "Lone Star Lodging, LLC", "lone star lodging"},
		{"inc with period", "Bluebonnet Inn Inc.", "bluebonnet inn"},
		{"ampersand", "Smith & Sons Motor Court", "smith and sons motor court"},
		{"diacritics", "Café Motél", "cafe motel"},
		{"punctuation and spacing", "  The   Wagon-Wheel  Motel  ", "the wagon wheel motel"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.in))
		})
	}
}

func TestAddress(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"abbreviation expansion", "123 Main St", "123 main street"},
		{"avenue", "500 Congress Ave", "500 congress avenue"},
		{"directional", "1200 N Lamar Blvd", "1200 north lamar boulevard"},
		{"already expanded", "123 Main Street", "123 main street"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Address(tt.in))
		})
	}
}

func TestAddressBase_StripsUnits(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"suite", "123 Main St, Suite 200", "123 main street"},
		{"ste", "123 Main St Ste 4", "123 main street"},
		{"hash", "123 Main St #12", "123 main street"},
		{"no unit", "123 Main St", "123 main street"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddressBase(tt.in))
		})
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	rec := model.Record{Name: "Desert Rose Motel", Address: "123 Main St", City: "El Paso"}

	fp1 := Fingerprint(rec)
	fp2 := Fingerprint(rec)
	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 64)
}

func TestFingerprint_InsensitiveToFormatting(t *testing.T) {
	a := model.Record{Name: "Desert Rose Motel, LLC", Address: "123 Main St", City: "El Paso"}
	b := model.Record{Name: "DESERT ROSE MOTEL", Address: "123 Main Street", City: "el paso"}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_DistinguishesRecords(t *testing.T) {
	a := model.Record{Name: "Desert Rose Motel", Address: "123 Main St", City: "El Paso"}
	b := model.Record{Name: "Desert Rose Motel", Address: "123 Main St", City: "Austin"}

	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestSetAbbreviations(t *testing.T) {
	SetAbbreviations(map[string]string{"xyzzy": "expanded"})
	assert.Equal(t, "1 expanded road", Address("1 Xyzzy Rd"))
	assert.Contains(t, Table(), "xyzzy")
}
