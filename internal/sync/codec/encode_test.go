package codec

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasldk/granite-erp-sub002/internal/sync/domain"
	"github.com/thomasldk/granite-erp-sub002/internal/sync/paths"
)

func testEncoder() *Encoder {
	e := NewEncoder(EncoderConfig{Paths: paths.NewResolver(`F:\nxerp`)})
	e.now = func() time.Time {
		return time.Date(2025, 3, 14, 9, 26, 0, 0, time.UTC)
	}
	return e
}

func sampleQuote() *domain.Quote {
	return &domain.Quote{
		ID:           "3f2a",
		Reference:    "DRC25-0001-C0R0",
		ClientName:   "Ashford Co",
		ClientCity:   "Burlington",
		ClientRegion: "VT",
		ProjectName:  "Tower West",
		MaterialName: "Gris Nordique",
		Currency:     "USD",
		ExchangeRate: 1.38,
		PaymentDays:  30,
		Items: []domain.QuoteItem{
			{
				ID: "i1", Tag: "A1", Material: "Gris Nordique",
				Description: "Step", Quantity: 4, Unit: "ea",
				Length: 48.5, Width: 12, Thickness: 2,
				UnitPrice: 125.5, TotalPrice: 502,
			},
		},
	}
}

func TestEncoder_SingleQuoteDialect(t *testing.T) {
	e := testEncoder()
	q := sampleQuote()
	q.ClientName = `Ashford "The Rock" Co`
	q.ProjectName = "Bob's Tower"

	out := e.EncodeQuote(q)

	assert.NotContains(t, out, `"`, "generated documents must never contain a raw double quote")
	assert.Contains(t, out, "&quot;The Rock&quot;")
	assert.Contains(t, out, "Bob&apos;s Tower")
	assert.Contains(t, out, "<?xml version='1.0'?>")
	assert.Contains(t, out, "type='Soumission'")
}

func TestEncoder_EncodeQuote(t *testing.T) {
	e := testEncoder()
	out := e.EncodeQuote(sampleQuote())

	assert.Contains(t, out, "action='emcot'")
	assert.Contains(t, out, `cible='F:\nxerp\Tower West\DRC25-0001-C0R0_Ashford_Co_Tower_West_Gris_Nordique.xlsx'`)
	assert.Contains(t, out, `modele='H:\Modeles\Directe\Modele de cotation defaut.xlsx'`)
	assert.Contains(t, out, "Génération par DRC le 14-03-2025 09:26")
	assert.Contains(t, out, "region='CA-VT'")
	assert.Contains(t, out, "numero='DRC25-0001-C0R0'")
	assert.Contains(t, out, "devise='USD'")

	// Dimension and price attributes use comma decimals, quantities and
	// rates keep the dot form.
	assert.Contains(t, out, "Longeur='48,5'")
	assert.Contains(t, out, "Prix_unitaire_externe='125,50'")
	assert.Contains(t, out, "QTY='4'")
	assert.Contains(t, out, "TauxChange='1.38'")

	assert.Contains(t, out, "No='L1'")
	assert.Contains(t, out, "Unité='/ ea'")
	assert.Contains(t, out, "<Fournisseurs/>")
}

func TestEncoder_EncodeQuote_Defaults(t *testing.T) {
	e := testEncoder()
	q := &domain.Quote{ID: "3f2a", Reference: "DRC25-0002-C0R0"}

	out := e.EncodeQuote(q)

	assert.Contains(t, out, "region='CA-QC'")
	assert.Contains(t, out, "Langue='fr'")
	assert.Contains(t, out, "UC='CAD'")
	assert.Contains(t, out, "nom='Projet'")
	assert.Contains(t, out, "Incoterm='Ex Works'")
	assert.Contains(t, out, "IncotermInd='EXW'")
	assert.Contains(t, out, "DureValidite='30'")
	assert.Contains(t, out, "TauxChange='1'")
	assert.Contains(t, out, "emetteur='System'")
	assert.Contains(t, out, "mail='admin@granitedrc.com'")
	assert.Contains(t, out, "Poid='165'")
	assert.Contains(t, out, "qualite='S'")
}

func TestEncoder_EncodeRevision(t *testing.T) {
	e := testEncoder()
	out := e.EncodeRevision(sampleQuote(), RevisionContext{
		SourcePath:   `F:\nxerp\Tower West\old.xlsx`,
		TargetPath:   `F:\nxerp\Tower West\new.xlsx`,
		OldReference: "DRC25-0001-C0R0",
		NewReference: "DRC25-0001-C0R1",
		OldMaterial:  "Gris Nordique",
		NewMaterial:  "Noir Cambrien",
		OldQuality:   "S",
		NewQuality:   "P",
	})

	assert.Contains(t, out, "action='recot'")
	assert.Contains(t, out, `cible='F:\nxerp\Tower West\new.xlsx'`)
	assert.Contains(t, out, "ancienNom='DRC25-0001-C0R0'")
	assert.Contains(t, out, "nouveauNom='DRC25-0001-C0R1'")
	assert.Contains(t, out, "ancienCouleur='Gris Nordique'")
	assert.Contains(t, out, "nouveauCouleur='Noir Cambrien'")
	assert.Contains(t, out, "nouvelleQualite='P'")
}

func TestEncoder_EncodeDuplicate(t *testing.T) {
	e := testEncoder()
	out := e.EncodeDuplicate(sampleQuote(), `F:\nxerp\A\src.xlsx`, `F:\nxerp\B\dst.xlsx`)

	assert.Contains(t, out, "action='recopier'")
	assert.Contains(t, out, `source='F:\nxerp\A\src.xlsx'`)
	assert.Contains(t, out, `cible='F:\nxerp\B\dst.xlsx'`)
}

func TestEncoder_EncodeReintegration(t *testing.T) {
	e := testEncoder()
	out := e.EncodeReintegration(`F:\nxerp\Tower West\file.xlsx`, "3f2a")

	assert.Contains(t, out, "action='reintegrer'")
	assert.Contains(t, out, "job='3f2a'")
	assert.Contains(t, out, `cible='F:\nxerp\Tower West\file.xlsx'`)
	assert.NotContains(t, out, "<devis", "reintegration carries no commercial body")
}

func TestEncoder_EncodeMissingArtifact(t *testing.T) {
	e := testEncoder()
	out := e.EncodeMissingArtifact("DRC25-0001-C0R0", "data/pending/DRC25-0001-C0R0.rak")

	assert.Contains(t, out, "action='erreur'")
	assert.Contains(t, out, "reference='DRC25-0001-C0R0'")
	assert.Contains(t, out, "message='artefact introuvable'")
}

func TestPaymentLabel(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		days    int
		deposit float64
		lang    string
		want    string
	}{
		{"fr upfront", 1, 0, 0, "fr", "Paiement à la commande"},
		{"fr deposit", 2, 0, 25, "fr", "25% à la commande, le solde avant expédition"},
		{"fr net days", 5, 45, 0, "fr", "net 45 jours après date de facturation"},
		{"fr undetermined", 6, 0, 0, "fr", "A déterminer"},
		{"en upfront", 1, 0, 0, "en", "Payment upon confirmation of order"},
		{"en net days", 5, 30, 0, "en", "net 30 days of date of invoice"},
		{"en undetermined", 6, 0, 0, "en", "Terms to be confirmed"},
		{"unknown code", 9, 0, 0, "en", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, paymentLabel(tt.code, tt.days, tt.deposit, tt.lang))
		})
	}
}

func TestInferPaymentCode(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		days    int
		deposit float64
		want    int
	}{
		{"explicit code wins", 4, 30, 25, 4},
		{"zero treated as unset", 0, 0, 0, 6},
		{"days and deposit", 6, 30, 25, 3},
		{"days only", 6, 30, 0, 5},
		{"deposit only", 6, 0, 25, 2},
		{"nothing to infer", 6, 0, 0, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferPaymentCode(tt.code, tt.days, tt.deposit))
		})
	}
}

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"ten digits", "4185551234", "(418) 555-1234"},
		{"already formatted", "(418) 555-1234", "(418) 555-1234"},
		{"dots and dashes", "418.555.1234", "(418) 555-1234"},
		{"with country code", "14185551234", "(141) 855-5123"},
		{"seven digits", "5551234", "(555) 1234"},
		{"short number", "555", "555"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatPhone(tt.input))
		})
	}
}

func TestCommaFraction(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  string
	}{
		{"quarter", 25, ",25"},
		{"zero", 0, "0"},
		{"four percent", 4, ",04"},
		{"over one hundred", 150, "1,5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commaFraction(tt.input))
		})
	}
}

func TestEncoder_RoundTripThroughDecode(t *testing.T) {
	e := testEncoder()
	out := e.EncodeQuote(sampleQuote())

	res, err := Decode([]byte(out))
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	item := res.Items[0]
	assert.Equal(t, "A1", item.Tag)
	assert.Equal(t, "Gris Nordique", item.Material)
	assert.InDelta(t, 4, item.Quantity, 1e-9)
	assert.InDelta(t, 48.5, item.Length, 1e-9)
	assert.InDelta(t, 125.5, item.UnitPrice, 1e-9)
	assert.InDelta(t, 502, item.TotalPrice, 1e-9)
	assert.True(t, strings.HasSuffix(res.TargetPath, ".xlsx"))
}
