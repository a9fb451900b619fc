package verification

import (
	"fmt"

	"github.com/georgepadayatti/goxades/properties"
)

// Form is a XAdES signature form.
type Form int

const (
	FormBES Form = iota + 1
	FormEPES
	FormT
	FormC
	FormX
	FormXL
	FormA
)

func (f Form) String() string {
	switch f {
	case FormBES:
		return "BES"
	case FormEPES:
		return "EPES"
	case FormT:
		return "T"
	case FormC:
		return "C"
	case FormX:
		return "X"
	case FormXL:
		return "X-L"
	case FormA:
		return "A"
	default:
		return fmt.Sprintf("Form(%d)", int(f))
	}
}

// formRule is one form: the properties that mark it and the forms it may
// extend.
type formRule struct {
	form    Form
	markers []string
	bases   []Form
}

// formRules are ordered strongest first.
var formRules = []formRule{
	{FormA, []string{properties.ArchiveTimeStampName}, []Form{FormXL}},
	{FormXL, []string{properties.CertificateValuesName, properties.RevocationValuesName}, []Form{FormX}},
	{FormX, []string{properties.SigAndRefsTimeStampName}, []Form{FormC}},
	{FormC, []string{properties.CompleteCertificateRefsName, properties.CompleteRevocationRefsName}, []Form{FormT}},
	{FormT, []string{properties.SignatureTimeStampName}, []Form{FormBES, FormEPES}},
	{FormEPES, []string{properties.SignaturePolicyIdentifierName}, []Form{FormBES}},
}

// ClassifyForm returns the strongest form marked by the verified property
// names. Once a form is marked, one of its base forms must hold as well;
// otherwise the property set is inconsistent.
func ClassifyForm(names []string, requireSigningCertificate bool) (Form, error) {
	counts := make(map[string]int, len(names))
	for _, n := range names {
		counts[n]++
	}
	if err := checkPairs(counts); err != nil {
		return 0, err
	}

	c := &classifier{counts: counts, requireSigningCertificate: requireSigningCertificate}
	for _, rule := range formRules {
		if !c.marked(rule) {
			continue
		}
		if !c.anyHolds(rule.bases) {
			return 0, newError(KindFormInconsistency, "",
				fmt.Sprintf("%s properties present but no base form holds", rule.form), nil)
		}
		return rule.form, nil
	}
	// Without a required signing certificate any property set is at least BES.
	if c.holds(FormBES) {
		return FormBES, nil
	}
	return 0, newError(KindFormInconsistency, "", "no recognized XAdES form", nil)
}

// checkPairs enforces the properties that come in pairs.
func checkPairs(counts map[string]int) error {
	pairs := [][2]string{
		{properties.CompleteCertificateRefsName, properties.CompleteRevocationRefsName},
		{properties.CertificateValuesName, properties.RevocationValuesName},
	}
	for _, p := range pairs {
		if (counts[p[0]] > 0) != (counts[p[1]] > 0) {
			return newError(KindFormInconsistency, "", fmt.Sprintf("%s and %s must be both present or both absent", p[0], p[1]), nil)
		}
	}
	for _, n := range []string{properties.CompleteCertificateRefsName, properties.CompleteRevocationRefsName} {
		if counts[n] > 1 {
			return newError(KindFormInconsistency, n, fmt.Sprintf("appears %d times", counts[n]), nil)
		}
	}
	return nil
}

type classifier struct {
	counts                    map[string]int
	requireSigningCertificate bool
}

func (c *classifier) marked(rule formRule) bool {
	for _, m := range rule.markers {
		if c.counts[m] == 0 {
			return false
		}
	}
	return true
}

func (c *classifier) anyHolds(forms []Form) bool {
	for _, f := range forms {
		if c.holds(f) {
			return true
		}
	}
	return false
}

// holds reports whether form f and, recursively, one of its bases hold.
func (c *classifier) holds(f Form) bool {
	if f == FormBES {
		return !c.requireSigningCertificate || c.counts[properties.SigningCertificateName] > 0
	}
	for _, rule := range formRules {
		if rule.form == f {
			return c.marked(rule) && c.anyHolds(rule.bases)
		}
	}
	return false
}
