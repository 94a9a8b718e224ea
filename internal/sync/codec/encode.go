// Package codec encodes outbound job documents and decodes inbound result
// documents in the attribute-keyed XML dialect of the Executor's macro
// layer.
package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/thomasldk/granite-erp-sub002/internal/sync/domain"
	"github.com/thomasldk/granite-erp-sub002/internal/sync/paths"
)

// Encoder builds job XML payloads. Stateless; safe to share.
type Encoder struct {
	paths          *paths.Resolver
	templatePath   string
	definitionPath string
	now            func() time.Time
}

// EncoderConfig carries the fixed Executor-side paths the generated
// documents point at.
type EncoderConfig struct {
	Paths          *paths.Resolver
	TemplatePath   string
	DefinitionPath string
}

func NewEncoder(cfg EncoderConfig) *Encoder {
	e := &Encoder{
		paths:          cfg.Paths,
		templatePath:   cfg.TemplatePath,
		definitionPath: cfg.DefinitionPath,
		now:            time.Now,
	}
	if e.paths == nil {
		e.paths = paths.NewResolver("")
	}
	if e.templatePath == "" {
		e.templatePath = `H:\Modeles\Directe\Modele de cotation defaut.xlsx`
	}
	if e.definitionPath == "" {
		e.definitionPath = `C:\Travail\XML\CLAUTOMATEEMISSIONCOTATION.xml`
	}
	return e
}

// RevisionContext carries the lineage attributes a revise job needs so the
// macro can locate the predecessor artifact and rename it in place.
type RevisionContext struct {
	SourcePath   string
	TargetPath   string
	OldReference string
	NewReference string
	OldMaterial  string
	NewMaterial  string
	OldQuality   string
	NewQuality   string
}

// EncodeQuote produces a standard creation job ("emcot" action) pointing
// the macro at the template workbook and the canonical target path.
func (e *Encoder) EncodeQuote(q *domain.Quote) string {
	root := newElement("generation").att("type", "Soumission")
	meta := root.child("meta").
		att("cible", e.paths.CanonicalPath(q.ProjectName, paths.CanonicalFilename(
			q.Reference, q.ClientName, q.ProjectName, q.MaterialName, ".xlsx"))).
		att("Langue", language(q)).
		att("action", "emcot").
		att("modele", e.templatePath).
		att("appCode", "03").
		att("journal", "").
		att("socLangue", "fr").
		att("codeModule", "01").
		att("definition", e.definitionPath).
		att("codeApplication", "03")
	meta.child("resultat").att("flag", "")

	e.writeBody(root, q)
	return e.render(root)
}

// EncodeRevision produces a revise job ("recot"): same commercial body as a
// creation, plus the old/new reference and material pairs for the in-place
// rename.
func (e *Encoder) EncodeRevision(q *domain.Quote, rev RevisionContext) string {
	root := newElement("generation").att("type", "Soumission")
	meta := root.child("meta").
		att("cible", rev.TargetPath).
		att("Langue", language(q)).
		att("action", "recot").
		att("modele", e.templatePath).
		att("appCode", "03").
		att("journal", "").
		att("socLangue", "fr").
		att("codeModule", "01").
		att("definition", e.definitionPath).
		att("codeApplication", "03").
		att("ancienNom", rev.OldReference).
		att("nouveauNom", rev.NewReference).
		att("ancienCouleur", rev.OldMaterial).
		att("nouveauCouleur", rev.NewMaterial).
		att("ancienQualite", rev.OldQuality).
		att("nouvelleQualite", rev.NewQuality)
	meta.child("resultat").att("flag", "")

	e.writeBody(root, q)
	return e.render(root)
}

// EncodeDuplicate produces a copy job ("recopier"): the macro copies the
// source artifact to the target path and rebinds it to the new quote.
func (e *Encoder) EncodeDuplicate(q *domain.Quote, sourcePath, targetPath string) string {
	root := newElement("generation").att("type", "Soumission")
	meta := root.child("meta").
		att("cible", targetPath).
		att("source", sourcePath).
		att("Langue", language(q)).
		att("action", "recopier").
		att("modele", e.templatePath).
		att("appCode", "03").
		att("journal", "").
		att("socLangue", "fr").
		att("codeModule", "01").
		att("definition", e.definitionPath).
		att("codeApplication", "03")
	meta.child("resultat").att("flag", "")

	e.writeBody(root, q)
	return e.render(root)
}

// EncodeReintegration produces a reintegrate job: only a target path and
// the job identifier, the macro re-reads the artifact already on disk.
func (e *Encoder) EncodeReintegration(targetPath, jobID string) string {
	root := newElement("generation").att("type", "Soumission")
	meta := root.child("meta").
		att("cible", targetPath).
		att("action", "reintegrer").
		att("job", jobID).
		att("codeApplication", "03")
	meta.child("resultat").att("flag", "")
	return e.render(root)
}

// EncodeMissingArtifact produces the placeholder payload served when a
// previously generated artifact cannot be found. The Executor must receive
// something every poll cycle; an empty response would stall its loop.
func (e *Encoder) EncodeMissingArtifact(reference, attemptedPath string) string {
	root := newElement("generation").att("type", "Soumission")
	meta := root.child("meta").
		att("action", "erreur").
		att("reference", reference).
		att("cible", attemptedPath).
		att("message", "artefact introuvable")
	meta.child("resultat").att("flag", "")
	return e.render(root)
}

func (e *Encoder) render(root *element) string {
	now := e.now()
	var b strings.Builder
	b.WriteString("<?xml version='1.0'?>")
	fmt.Fprintf(&b, "<!--Génération par DRC le %02d-%02d-%d %02d:%02d-->",
		now.Day(), int(now.Month()), now.Year(), now.Hour(), now.Minute())
	root.render(&b)
	return b.String()
}

// writeBody appends the client, representative, devis and pierre blocks
// shared by the creation, revision and duplication documents.
func (e *Encoder) writeBody(root *element, q *domain.Quote) {
	lang := language(q)

	region := "CA-QC"
	if q.ClientRegion != "" {
		region = "CA-" + q.ClientRegion
	}
	client := root.child("client").
		att("nom", q.ClientName).
		att("pays", "CA").
		att("ville", q.ClientCity).
		att("langue", lang).
		att("region", region).
		att("adresse1", q.ClientAddress).
		att("codepostal", q.ClientPostalCode).
		att("abbreviation", "")

	contacts := client.child("contacts")
	if q.ContactLastName != "" || q.ContactEmail != "" {
		contacts.child("contact").
			att("cel", formatPhone(q.ContactMobile)).
			att("fax", formatPhone(q.ContactFax)).
			att("nom", q.ContactLastName).
			att("tel", formatPhone(q.ContactPhone)).
			att("mail", q.ContactEmail).
			att("prenom", q.ContactFirstName)
	}

	emitter := "System"
	if q.RepLastName != "" || q.RepEmail != "" {
		emitter = strings.TrimSpace(q.RepFirstName + " " + q.RepLastName)
		root.child("representant").
			att("cel", formatPhone(coalesce(q.RepMobile, q.RepPhone))).
			att("fax", formatPhone(q.RepFax)).
			att("nom", q.RepLastName).
			att("tel", formatPhone(q.RepPhone)).
			att("mail", q.RepEmail).
			att("prenom", q.RepFirstName)
	} else {
		// Fixed system placeholder: the macro requires the block.
		root.child("representant").
			att("cel", "").
			att("fax", "").
			att("nom", "System").
			att("tel", "").
			att("mail", "admin@granitedrc.com").
			att("prenom", "Admin")
	}

	code := inferPaymentCode(q.PaymentCode, q.PaymentDays, q.DepositPercentage)
	label := q.PaymentCustomText
	if label == "" {
		label = paymentLabel(code, q.PaymentDays, q.DepositPercentage, lang)
	}

	currency := coalesce(q.Currency, "CAD")
	devis := root.child("devis").
		att("UC", currency).
		att("nom", coalesce(q.ProjectName, "Projet")).
		att("Mesure", "an").
		att("TxSemi", ",4").
		att("devise", currency).
		att("numero", q.Reference).
		att("CratePU", "8").
		att("Accompte", commaFraction(q.DepositPercentage)).
		att("Escompte", commaFraction(q.DiscountPercentage)).
		att("Incoterm", coalesce(q.Incoterm, "Ex Works")).
		att("Paiement", strconv.Itoa(q.PaymentDays)).
		att("delaiNbr", "4").
		att("emetteur", emitter).
		att("valideur", "").
		att("IncotermS", q.IncotermCustomText).
		att("Complexite", "Spécifique").
		att("TauxChange", rate(q.ExchangeRate)).
		att("optPalette", "0").
		att("IncotermInd", coalesce(q.IncotermCode, "EXW")).
		att("DureValidite", strconv.Itoa(defaultInt(q.ValidityDays, 30))).
		att("DelaiEscompte", strconv.Itoa(defaultInt(q.DiscountDays, 30))).
		att("ConditionPaiement", label).
		att("ConditionPaiementInd", strconv.Itoa(code)).
		att("ConditionPaiementSaisie", q.PaymentCustomText).
		att("dateEmission", emissionDate(q.DateIssued, e.now))

	devis.child("LOADING").
		att("nom", "GRANITE DRC RAP").
		att("pays", "CA").
		att("ville", "Rivière-à-Pierre").
		att("region", "CA-QC").
		att("adresse1", "475 Avenue Delisle").
		att("regiondsp", "Quebec").
		att("codepostal", "G0A3A0").
		att("paysTraduit", "Canada").
		att("abbreviation", "")

	externe := devis.child("externe").att("devise", "")
	for i, item := range q.Items {
		unit := "/ ea"
		if item.Unit != "" {
			unit = "/ " + item.Unit
		}
		tag := item.Tag
		if tag == "" {
			tag = strconv.Itoa(i + 1)
		}
		externe.child("ligne").
			att("ID", item.ID).
			att("Type", "").
			att("No", "L"+strconv.Itoa(i+1)).
			att("Ref", item.Description).
			att("TAG", tag).
			att("GRANITE", item.Material).
			att("QTY", plainNumber(item.Quantity)).
			att("Item", "step").
			att("Longeur", commaNumber(item.Length)).
			att("Largeur", commaNumber(item.Width)).
			att("Epaisseur", commaNumber(item.Thickness)).
			att("Description", item.Description).
			att("Poid_Tot", comma2(item.TotalWeight)).
			att("Prix_unitaire_interne", comma2(firstNonZero(item.UnitPriceCad, item.UnitPrice))).
			att("Prix_unitaire_externe", comma2(item.UnitPrice)).
			att("Unité", unit).
			att("Prix_interne", comma2(firstNonZero(item.TotalPriceCad, item.TotalPrice))).
			att("Prix_externe", comma2(item.TotalPrice))
	}

	stoneUnit := "pi3"
	if q.MaterialUnit == "Metric" || q.MaterialUnit == "m2" {
		stoneUnit = "m3"
	}
	devis.child("pierre").
		att("Poid", plainNumber(firstNonZero(q.MaterialDensity, 165))).
		att("prix", plainNumber(q.MaterialPrice)).
		att("perte", commaFraction(firstNonZero(q.MaterialWastePct, 4))).
		att("unite", stoneUnit).
		att("devise", currency).
		att("couleur", coalesce(q.MaterialName, "Standard")).
		att("qualite", coalesce(q.MaterialQuality, "S")).
		att("quantite", strconv.Itoa(len(q.Items))).
		att("unitePoid", "lbs")

	root.child("Fournisseurs")
}

// paymentLabel generates the human payment-condition sentence for the
// known codes, in the client's language.
func paymentLabel(code, days int, deposit float64, lang string) string {
	dep := strconv.FormatFloat(deposit, 'f', -1, 64)
	if lang == "fr" {
		switch code {
		case 1:
			return "Paiement à la commande"
		case 2:
			return fmt.Sprintf("%s%% à la commande, le solde avant expédition", dep)
		case 3:
			return fmt.Sprintf("%s%% à la commande le solde %d jours net après date de facturation", dep, days)
		case 4:
			return fmt.Sprintf("net %d jours avec %s%% d'escompte si paiement reçu par VIREMENT BANCAIRE chez DRC avant %d jours", days, dep, days)
		case 5:
			return fmt.Sprintf("net %d jours après date de facturation", days)
		case 6:
			return "A déterminer"
		}
		return ""
	}
	switch code {
	case 1:
		return "Payment upon confirmation of order"
	case 2:
		return fmt.Sprintf("%s%% deposit on confirmation of order, balance before delivery", dep)
	case 3:
		return fmt.Sprintf("%s%% deposit on confirmation of order, balance net %d days after date of invoice", dep, days)
	case 4:
		return fmt.Sprintf("net %d days and %s%% discount if payment by WIRE TRANSFER is received before", days, dep)
	case 5:
		return fmt.Sprintf("net %d days of date of invoice", days)
	case 6:
		return "Terms to be confirmed"
	}
	return ""
}

// inferPaymentCode resolves the unset/unknown code (6) from the days and
// deposit actually present on the quote.
func inferPaymentCode(code, days int, deposit float64) int {
	if code == 0 {
		code = 6
	}
	if code != 6 {
		return code
	}
	switch {
	case days > 0 && deposit > 0:
		return 3
	case days > 0:
		return 5
	case deposit > 0:
		return 2
	}
	return 6
}

// formatPhone renders digits as (AAA) BBB-CCCC, tolerating short numbers.
func formatPhone(v string) string {
	var digits []byte
	for i := 0; i < len(v); i++ {
		if v[i] >= '0' && v[i] <= '9' {
			digits = append(digits, v[i])
		}
	}
	s := string(digits)
	switch {
	case len(s) < 4:
		return s
	case len(s) < 7:
		return fmt.Sprintf("(%s) %s", s[:3], s[3:])
	default:
		if len(s) > 10 {
			s = s[:10]
		}
		if len(s) < 10 {
			return fmt.Sprintf("(%s) %s", s[:3], s[3:])
		}
		return fmt.Sprintf("(%s) %s-%s", s[:3], s[3:6], s[6:])
	}
}

// comma2 renders a number with two decimals and a comma decimal mark.
func comma2(f float64) string {
	return strings.ReplaceAll(strconv.FormatFloat(f, 'f', 2, 64), ".", ",")
}

// commaNumber renders the shortest representation with a comma mark.
func commaNumber(f float64) string {
	return strings.ReplaceAll(strconv.FormatFloat(f, 'f', -1, 64), ".", ",")
}

// commaFraction renders a percentage as the macro's fractional form:
// 25 -> ",25", 0 -> "0".
func commaFraction(pct float64) string {
	if pct <= 0 {
		return "0"
	}
	s := strings.ReplaceAll(strconv.FormatFloat(pct/100, 'f', -1, 64), ".", ",")
	return strings.TrimPrefix(s, "0")
}

// rate and plainNumber keep the dot decimal mark: these attributes were
// always emitted unlocalized and the macro parses them that way.
func rate(r float64) string {
	if r == 0 {
		return "1"
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

func plainNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func emissionDate(d time.Time, now func() time.Time) string {
	if d.IsZero() {
		d = now()
	}
	return fmt.Sprintf("%02d-%02d-%d", d.Day(), int(d.Month()), d.Year())
}

func language(q *domain.Quote) string {
	if q.ClientLanguage != "" {
		return q.ClientLanguage
	}
	return "fr"
}

func coalesce(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func defaultInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func firstNonZero(a, b float64) float64 {
	if a != 0 {
		return a
	}
	return b
}
