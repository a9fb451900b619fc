package verification

import (
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"

	"github.com/georgepadayatti/goxades/certvalidator"
	"github.com/georgepadayatti/goxades/generated/w3c"
	"github.com/georgepadayatti/goxades/policy"
	"github.com/georgepadayatti/goxades/properties"
	"github.com/georgepadayatti/goxades/timestamps"
)

func kindOf(err error) Kind {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Kind
	}
	return 0
}

func TestVerifyMinimalBES(t *testing.T) {
	f := newFixture(t)
	in := f.input(t,
		prop(&properties.SigningTimeData{Time: baseTime}),
		prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}}),
	)

	res, err := New().Verify(context.Background(), in)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Form != FormBES {
		t.Errorf("Form = %v, want BES", res.Form)
	}
	if res.SigningCertificate != f.leaf.Cert {
		t.Errorf("SigningCertificate = %v, want leaf", res.SigningCertificate.Subject)
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}

	var names []string
	for _, p := range res.QualifyingProperties() {
		names = append(names, p.Name())
	}
	want := []string{properties.SigningTimeName, properties.SigningCertificateName}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("property names mismatch (-want +got):\n%s", diff)
	}

	sc := res.Find(properties.SigningCertificateName)
	if len(sc) != 1 {
		t.Fatalf("Find(SigningCertificate) returned %d properties", len(sc))
	}
	certs := sc[0].Property.(*properties.SigningCertificate).Certificates
	if len(certs) != 1 || certs[0] != f.leaf.Cert {
		t.Errorf("SigningCertificate.Certificates = %d certificates, want the leaf", len(certs))
	}
}

func TestVerifyUnresolvedObjectReference(t *testing.T) {
	f := newFixture(t)
	in := f.input(t,
		prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}}),
		prop(&properties.DataObjectFormatData{ObjectRef: "#obj-9", MimeType: "text/plain"}),
	)

	_, err := New().Verify(context.Background(), in)
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("Verify error = %v, want UnresolvedReference", err)
	}
	var verr *Error
	errors.As(err, &verr)
	if verr.Ref != "#obj-9" {
		t.Errorf("Ref = %q, want %q", verr.Ref, "#obj-9")
	}
	if verr.Property != properties.DataObjectFormatName {
		t.Errorf("Property = %q, want %q", verr.Property, properties.DataObjectFormatName)
	}
}

func TestVerifySplitCompleteRefs(t *testing.T) {
	f := newFixture(t)
	in := f.input(t,
		prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}}),
		propAt(&properties.SignatureTimeStampData{BaseTimeStampData: token(0)}, f.element(t, "sts")),
		prop(&properties.CompleteCertificateRefsData{
			CertRefs: []properties.CertRef{certRef(f.intermediate.Cert), certRef(f.root.Cert)},
		}),
	)

	_, err := New(WithTimeStampVerifier(newFakeTSA())).Verify(context.Background(), in)
	if !errors.Is(err, ErrFormInconsistency) {
		t.Fatalf("Verify error = %v, want FormInconsistency", err)
	}
}

func TestVerifyTimeStampCoherence(t *testing.T) {
	f := newFixture(t)
	in := f.input(t,
		prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}}),
		prop(&properties.IndividualDataObjectsTimeStampData{BaseTimeStampData: token(1), Includes: []string{"#ref-1"}}),
		propAt(&properties.SignatureTimeStampData{BaseTimeStampData: token(0)}, f.element(t, "sts")),
	)

	_, err := New(WithTimeStampVerifier(newFakeTSA())).Verify(context.Background(), in)
	if !errors.Is(err, ErrTimeCoherenceViolation) {
		t.Fatalf("Verify error = %v, want TimeCoherenceViolation", err)
	}
}

func TestVerifyWithoutSigningCertificateIsBES(t *testing.T) {
	f := newFixture(t)
	res, err := New().Verify(context.Background(), f.input(t, prop(&properties.SigningTimeData{Time: baseTime})))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Form != FormBES {
		t.Errorf("Form = %v, want BES", res.Form)
	}
}

func TestVerifyTimeStampCoherenceIsSignatureVerifier(t *testing.T) {
	f := newFixture(t)
	in := func() *Input {
		return f.input(t,
			prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}}),
			prop(&properties.IndividualDataObjectsTimeStampData{BaseTimeStampData: token(1), Includes: []string{"#ref-1"}}),
			propAt(&properties.SignatureTimeStampData{BaseTimeStampData: token(0)}, f.element(t, "sts")),
		)
	}
	errRejected := errors.New("rejected")
	reject := SignatureVerifierFunc(func(context.Context, *Result) error { return errRejected })

	_, err := New(WithTimeStampVerifier(newFakeTSA()), WithSignatureVerifier(reject)).Verify(context.Background(), in())
	if !errors.Is(err, ErrTimeCoherenceViolation) {
		t.Errorf("appended verifier: error = %v, want TimeCoherenceViolation first", err)
	}

	var called bool
	record := SignatureVerifierFunc(func(context.Context, *Result) error {
		called = true
		return nil
	})
	if _, err := New(WithTimeStampVerifier(newFakeTSA()), WithSignatureVerifiers(record)).Verify(context.Background(), in()); err != nil {
		t.Fatalf("replaced verifiers: %v", err)
	}
	if !called {
		t.Error("replacement signature verifier not called")
	}
}

func TestVerifyUnknownUnsignedElement(t *testing.T) {
	f := newFixture(t)
	el := etree.NewElement("ext:Custom")
	el.CreateAttr("xmlns:ext", "urn:example:ext")

	in := f.input(t,
		prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}}),
		prop(&properties.GenericElementData{Element: el}),
	)
	_, err := New().Verify(context.Background(), in)
	if !errors.Is(err, ErrVerifierUnavailable) {
		t.Fatalf("Verify error = %v, want VerifierUnavailable", err)
	}
	var verr *Error
	errors.As(err, &verr)
	if want := "{urn:example:ext}Custom"; verr.Property != want {
		t.Errorf("Property = %q, want %q", verr.Property, want)
	}

	custom := PropertyVerifierFunc(func(_ context.Context, in PropertyInput, _ *Context) (properties.QualifyingProperty, error) {
		return &properties.GenericProperty{
			PropertyName: in.Data.PropertyName(),
			PropertyKind: properties.UnsignedSignatureProperty,
		}, nil
	})
	res, err := New(WithElementVerifier("{urn:example:ext}Custom", custom)).Verify(context.Background(), in)
	if err != nil {
		t.Fatalf("Verify with element verifier: %v", err)
	}
	if got := len(res.Find("{urn:example:ext}Custom")); got != 1 {
		t.Errorf("Find(custom) = %d properties, want 1", got)
	}
}

func TestVerifyArchivalForm(t *testing.T) {
	f := newFixture(t)
	tsa := newFakeTSA()
	registry := &recordingRegistry{}
	v := New(WithTimeStampVerifier(tsa), WithValidationDataRegistry(registry))

	res, err := v.Verify(context.Background(), f.input(t, f.fullProperties(t)...))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Form != FormA {
		t.Errorf("Form = %v, want A", res.Form)
	}
	if len(registry.certs) != 2 || len(registry.crls) != 1 {
		t.Errorf("registry got %d certificates and %d CRLs, want 2 and 1", len(registry.certs), len(registry.crls))
	}

	sigValue := canonical(t, f.sig.SignatureValue)
	if got := tsa.input(0); !bytes.Equal(got, sigValue) {
		t.Errorf("signature timestamp input = %q, want %q", got, sigValue)
	}

	var want []byte
	for _, id := range []string{"sigval", "sts", "ccr", "crr"} {
		want = append(want, canonical(t, f.element(t, id))...)
	}
	if got := tsa.input(10); !bytes.Equal(got, want) {
		t.Errorf("SigAndRefs timestamp input = %q, want %q", got, want)
	}

	archive := tsa.input(20)
	for _, id := range []string{"sts", "ccr", "crr", "sarts", "cv", "rv"} {
		if !bytes.Contains(archive, canonical(t, f.element(t, id))) {
			t.Errorf("archive timestamp input does not cover %s", id)
		}
	}
	if !bytes.HasSuffix(archive, canonical(t, f.element(t, "extra"))) {
		t.Error("archive timestamp input does not end with the extra ds:Object")
	}
	if bytes.Contains(archive, canonical(t, f.element(t, "cs"))) {
		t.Error("archive timestamp input covers a following countersignature")
	}
}

func TestVerifyArchiveTimeStampRequiresValues(t *testing.T) {
	f := newFixture(t)
	v := New(WithTimeStampVerifier(newFakeTSA()))

	// The archive timestamp anchored at the SigAndRefs element has no
	// preceding CertificateValues.
	in := f.input(t,
		prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}}),
		propAt(&properties.ArchiveTimeStampData{BaseTimeStampData: token(20)}, f.element(t, "sarts")),
	)
	_, err := v.Verify(context.Background(), in)
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("Verify error = %v, want UnresolvedReference", err)
	}
}

func TestVerifySigAndRefsRejectsAttributeRefs(t *testing.T) {
	f := newFixture(t)
	usp := f.sig.UnsignedSignatureProperties()
	attr := etree.NewElement("xades:AttributeCertificateRefs")
	usp.InsertChildAt(f.element(t, "sarts").Index(), attr)

	in := f.input(t,
		prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}}),
		propAt(&properties.SigAndRefsTimeStampData{BaseTimeStampData: token(10)}, f.element(t, "sarts")),
	)
	_, err := New(WithTimeStampVerifier(newFakeTSA())).Verify(context.Background(), in)
	if !errors.Is(err, ErrUnsupportedFeature) {
		t.Fatalf("Verify error = %v, want UnsupportedFeature", err)
	}
}

func TestVerifyTimeStampFailures(t *testing.T) {
	f := newFixture(t)
	sc := prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}})
	sts := f.element(t, "sts")

	twoTokens := token(0)
	twoTokens.Tokens = append(twoTokens.Tokens, twoTokens.Tokens[0])
	badC14N := token(0)
	badC14N.CanonicalizationAlgorithm = "urn:example:c14n"
	notBase64 := token(0)
	notBase64.Tokens = [][]byte{[]byte("%%%")}

	mismatch := timestamps.VerifierFunc(func(context.Context, []byte, []byte) (time.Time, error) {
		return time.Time{}, timestamps.ErrDigestMismatch
	})
	broken := timestamps.VerifierFunc(func(context.Context, []byte, []byte) (time.Time, error) {
		return time.Time{}, timestamps.ErrInvalidSignature
	})

	tests := []struct {
		name string
		data properties.BaseTimeStampData
		tv   timestamps.TokenVerifier
		want Kind
	}{
		{"several tokens", twoTokens, newFakeTSA(), KindUnsupportedFeature},
		{"no verifier", token(0), nil, KindVerifierUnavailable},
		{"unknown canonicalization", badC14N, newFakeTSA(), KindCannotAccumulate},
		{"token not base64", notBase64, newFakeTSA(), KindInvalidTimeStamp},
		{"digest mismatch", token(0), mismatch, KindDigestMismatch},
		{"invalid token", token(0), broken, KindInvalidTimeStamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.tv != nil {
				opts = append(opts, WithTimeStampVerifier(tt.tv))
			}
			in := f.input(t, sc, propAt(&properties.SignatureTimeStampData{BaseTimeStampData: tt.data}, sts))
			_, err := New(opts...).Verify(context.Background(), in)
			if got := kindOf(err); got != tt.want {
				t.Errorf("Verify error = %v, want kind %v", err, tt.want)
			}
		})
	}
}

func TestVerifyDataObjectTimeStamps(t *testing.T) {
	f := newFixture(t)
	tsa := newFakeTSA()
	in := f.input(t,
		prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}}),
		prop(&properties.AllDataObjectsTimeStampData{BaseTimeStampData: token(-5)}),
		prop(&properties.IndividualDataObjectsTimeStampData{BaseTimeStampData: token(-3), Includes: []string{"#ref-2", "#ref-1"}}),
	)
	res, err := New(WithTimeStampVerifier(tsa)).Verify(context.Background(), in)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	obj1 := canonical(t, f.element(t, "obj-1"))
	obj2 := canonical(t, f.element(t, "obj-2"))
	if got, want := tsa.input(-5), append(append([]byte{}, obj1...), obj2...); !bytes.Equal(got, want) {
		t.Errorf("all data objects input = %q, want %q", got, want)
	}
	if got, want := tsa.input(-3), append(append([]byte{}, obj2...), obj1...); !bytes.Equal(got, want) {
		t.Errorf("individual data objects input = %q, want %q", got, want)
	}

	for _, obj := range res.DataObjects {
		if !obj.HasProperty(properties.AllDataObjectsTimeStampName) {
			t.Errorf("object %s has no AllDataObjectsTimeStamp", obj.Reference.URI)
		}
		if !obj.HasProperty(properties.IndividualDataObjectsTimeStampName) {
			t.Errorf("object %s has no IndividualDataObjectsTimeStamp", obj.Reference.URI)
		}
	}
}

func TestVerifySigningCertificate(t *testing.T) {
	f := newFixture(t)
	stranger := f.root.Issue(t, "Someone Else", 4243, false)

	wrongDigest := certRef(f.leaf.Cert)
	wrongDigest.DigestValue = sha256Of([]byte("not the certificate"))
	unknownAlg := certRef(f.leaf.Cert)
	unknownAlg.DigestAlgorithm = "urn:example:digest"

	tests := []struct {
		name string
		refs []properties.CertRef
		want Kind
	}{
		{"leaf only", []properties.CertRef{certRef(f.leaf.Cert)}, 0},
		{"leaf and path", []properties.CertRef{certRef(f.root.Cert), certRef(f.leaf.Cert), certRef(f.intermediate.Cert)}, 0},
		{"no leaf", []properties.CertRef{certRef(f.intermediate.Cert)}, KindInvalidProperty},
		{"outside the path", []properties.CertRef{certRef(f.leaf.Cert), certRef(stranger.Cert)}, KindInvalidProperty},
		{"duplicate leaf", []properties.CertRef{certRef(f.leaf.Cert), certRef(f.leaf.Cert)}, KindInvalidProperty},
		{"wrong digest", []properties.CertRef{wrongDigest}, KindDigestMismatch},
		{"unknown algorithm", []properties.CertRef{unknownAlg}, KindUnsupportedFeature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input(t, prop(&properties.SigningCertificateData{CertRefs: tt.refs}))
			res, err := New().Verify(context.Background(), in)
			if got := kindOf(err); got != tt.want {
				t.Fatalf("Verify error = %v, want kind %v", err, tt.want)
			}
			if err != nil {
				return
			}
			got := res.Find(properties.SigningCertificateName)[0].Property.(*properties.SigningCertificate)
			if len(got.Certificates) != len(tt.refs) {
				t.Errorf("Certificates = %d, want %d", len(got.Certificates), len(tt.refs))
			}
		})
	}
}

func TestVerifySigningCertificateKeyInfoIssuerSerial(t *testing.T) {
	f := newFixture(t)
	objects := NewSignedObjectsData(f.sig.DataObjectReferences(), f.resolver)
	vc, err := NewContext(CertificationChainData{
		Chain: f.chain(),
		IssuerSerial: &certvalidator.IssuerSerial{
			IssuerDN:     f.leaf.Cert.Issuer.String(),
			SerialNumber: big.NewInt(1),
		},
	}, objects)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	in := &Input{
		Signature:  f.sig,
		Properties: []PropertyInput{prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}})},
		Context:    vc,
		Resolver:   f.resolver,
	}
	_, err = New().Verify(context.Background(), in)
	if !errors.Is(err, ErrInvalidProperty) {
		t.Fatalf("Verify error = %v, want InvalidProperty", err)
	}
}

func TestVerifyCompleteCertificateRefs(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		refs []properties.CertRef
		want Kind
	}{
		{"complete", []properties.CertRef{certRef(f.root.Cert), certRef(f.intermediate.Cert)}, 0},
		{"missing intermediate", []properties.CertRef{certRef(f.root.Cert)}, KindInvalidProperty},
		{"leaf is not enough", []properties.CertRef{certRef(f.leaf.Cert)}, KindInvalidProperty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			r := &run{v: v, in: f.input(t), vc: f.context(t), logger: v.logger}
			_, err := r.verifyCompleteCertificateRefs(&properties.CompleteCertificateRefsData{CertRefs: tt.refs})
			if got := kindOf(err); got != tt.want {
				t.Errorf("verifyCompleteCertificateRefs error = %v, want kind %v", err, tt.want)
			}
		})
	}
}

func TestVerifyCompleteRevocationRefsConsumesReferences(t *testing.T) {
	f := newFixture(t)
	thisUpdate := baseTime.Add(-time.Hour)
	first := f.intermediate.CRL(t, 1, thisUpdate)
	second := f.intermediate.CRL(t, 2, thisUpdate)

	withoutNumber := func(crl *x509.RevocationList) properties.CRLRef {
		ref := crlRef(crl)
		ref.Number = nil
		return ref
	}

	tests := []struct {
		name string
		crls []*x509.RevocationList
		refs []properties.CRLRef
		want Kind
	}{
		{"one each", []*x509.RevocationList{first, second}, []properties.CRLRef{crlRef(second), crlRef(first)}, 0},
		{"ambiguous refs consumed once", []*x509.RevocationList{first, second}, []properties.CRLRef{withoutNumber(first), withoutNumber(second)}, 0},
		{"one ref for two CRLs", []*x509.RevocationList{first, second}, []properties.CRLRef{withoutNumber(first)}, KindInvalidProperty},
		{"digest of another CRL", []*x509.RevocationList{first}, []properties.CRLRef{withoutNumber(second)}, KindDigestMismatch},
		{"no matching ref", []*x509.RevocationList{first}, []properties.CRLRef{crlRef(second)}, KindInvalidProperty},
		{"no CRLs", nil, []properties.CRLRef{crlRef(first)}, KindInvalidProperty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			vc, err := NewContext(CertificationChainData{Chain: f.chain(), CRLs: tt.crls}, nil)
			if err != nil {
				t.Fatalf("NewContext: %v", err)
			}
			r := &run{v: v, in: f.input(t), vc: vc, logger: v.logger}
			_, err = r.verifyCompleteRevocationRefs(&properties.CompleteRevocationRefsData{CRLRefs: tt.refs})
			if got := kindOf(err); got != tt.want {
				t.Errorf("verifyCompleteRevocationRefs error = %v, want kind %v", err, tt.want)
			}
		})
	}
}

func TestVerifyCompleteRevocationRefsOCSP(t *testing.T) {
	f := newFixture(t)
	v := New()
	r := &run{v: v, in: f.input(t), vc: f.context(t), logger: v.logger}
	_, err := r.verifyCompleteRevocationRefs(&properties.CompleteRevocationRefsData{
		OCSPRefs: []properties.OCSPRef{{ResponderByName: "CN=OCSP", ProducedAt: baseTime}},
	})
	if !errors.Is(err, ErrUnsupportedFeature) {
		t.Errorf("error = %v, want UnsupportedFeature", err)
	}
}

func TestVerifyEncapsulatedValues(t *testing.T) {
	f := newFixture(t)
	v := New()
	r := &run{v: v, in: f.input(t), vc: f.context(t), logger: v.logger}

	tests := []struct {
		name string
		data properties.DataObject
	}{
		{"certificate not base64", &properties.CertificateValuesData{Certificates: [][]byte{[]byte("%%")}}},
		{"certificate not DER", &properties.CertificateValuesData{Certificates: [][]byte{b64([]byte("junk"))}}},
		{"CRL not DER", &properties.RevocationValuesData{CRLs: [][]byte{b64([]byte("junk"))}}},
		{"OCSP not DER", &properties.RevocationValuesData{OCSPResponses: [][]byte{b64([]byte("junk"))}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.verifyProperty(context.Background(), prop(tt.data))
			if !errors.Is(err, ErrInvalidProperty) {
				t.Errorf("error = %v, want InvalidProperty", err)
			}
		})
	}
}

func TestVerifySignaturePolicy(t *testing.T) {
	f := newFixture(t)
	doc := []byte("policy document")
	provider := policy.NewMapProvider(map[string][]byte{"urn:oid:1.2.3.4": doc})

	sc := prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}})
	explicit := func(digest []byte) PropertyInput {
		return prop(&properties.SignaturePolicyData{
			Identifier:      "urn:oid:1.2.3.4",
			DigestAlgorithm: w3c.AlgSHA256,
			DigestValue:     digest,
		})
	}

	res, err := New(WithPolicyProvider(provider)).Verify(context.Background(), f.input(t, sc, explicit(sha256Of(doc))))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Form != FormEPES {
		t.Errorf("Form = %v, want EPES", res.Form)
	}

	_, err = New(WithPolicyProvider(provider)).Verify(context.Background(), f.input(t, sc, explicit(sha256Of([]byte("other")))))
	if !errors.Is(err, ErrDigestMismatch) {
		t.Errorf("wrong digest: error = %v, want DigestMismatch", err)
	}

	_, err = New().Verify(context.Background(), f.input(t, sc, explicit(sha256Of(doc))))
	if !errors.Is(err, ErrInvalidProperty) {
		t.Errorf("no provider: error = %v, want InvalidProperty", err)
	}

	res, err = New().Verify(context.Background(), f.input(t, sc, prop(&properties.SignaturePolicyData{Implied: true})))
	if err != nil {
		t.Fatalf("implied policy: %v", err)
	}
	if !res.Find(properties.SignaturePolicyIdentifierName)[0].Property.(*properties.SignaturePolicy).Implied {
		t.Error("implied policy not reported as implied")
	}
}

func TestVerifyDataObjectProperties(t *testing.T) {
	f := newFixture(t)
	sc := prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}})

	t.Run("format and commitment attach", func(t *testing.T) {
		in := f.input(t, sc,
			prop(&properties.DataObjectFormatData{ObjectRef: "#ref-1", MimeType: "text/xml"}),
			prop(&properties.CommitmentTypeData{URI: "urn:example:proof-of-origin", AllSignedDataObjects: true}),
		)
		res, err := New().Verify(context.Background(), in)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		obj, _ := in.Context.SignedObjects().Lookup("#ref-1")
		if got := len(obj.Properties()); got != 2 {
			t.Errorf("#ref-1 has %d properties, want 2", got)
		}
		if len(res.DataObjects) != 2 {
			t.Errorf("DataObjects = %d, want 2", len(res.DataObjects))
		}
	})

	t.Run("second format", func(t *testing.T) {
		in := f.input(t, sc,
			prop(&properties.DataObjectFormatData{ObjectRef: "#ref-1", MimeType: "text/xml"}),
			prop(&properties.DataObjectFormatData{ObjectRef: "#ref-1", MimeType: "text/plain"}),
		)
		_, err := New().Verify(context.Background(), in)
		if !errors.Is(err, ErrDuplicateProperty) {
			t.Errorf("error = %v, want DuplicateProperty", err)
		}
	})

	t.Run("commitment to unknown object", func(t *testing.T) {
		in := f.input(t, sc,
			prop(&properties.CommitmentTypeData{URI: "urn:example:proof-of-origin", ObjectRefs: []string{"#ref-1", "#ref-7"}}),
		)
		_, err := New().Verify(context.Background(), in)
		var verr *Error
		if !errors.As(err, &verr) || verr.Kind != KindUnresolvedReference || verr.Ref != "#ref-7" {
			t.Errorf("error = %v, want UnresolvedReference for #ref-7", err)
		}
		obj, _ := in.Context.SignedObjects().Lookup("#ref-1")
		if len(obj.Properties()) != 0 {
			t.Error("commitment attached before all references resolved")
		}
	})
}

func TestVerifyStructure(t *testing.T) {
	f := newFixture(t)
	sc := prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}})

	tests := []struct {
		name  string
		opts  []Option
		props []PropertyInput
		want  Kind
	}{
		{"two signing times", nil, []PropertyInput{sc, prop(&properties.SigningTimeData{Time: baseTime}), prop(&properties.SigningTimeData{Time: baseTime})}, KindDuplicateProperty},
		{"zero signing time", nil, []PropertyInput{sc, prop(&properties.SigningTimeData{})}, KindStructure},
		{"policy without digest", nil, []PropertyInput{sc, prop(&properties.SignaturePolicyData{Identifier: "urn:oid:1.2"})}, KindStructure},
		{"commitment with both scopes", nil, []PropertyInput{sc, prop(&properties.CommitmentTypeData{URI: "urn:x", AllSignedDataObjects: true, ObjectRefs: []string{"#ref-1"}})}, KindStructure},
		{"signing certificate required", []Option{RequireSigningCertificate()}, []PropertyInput{prop(&properties.SigningTimeData{Time: baseTime})}, KindStructure},
		{"two certificate refs", []Option{WithTimeStampVerifier(newFakeTSA())}, []PropertyInput{sc,
			propAt(&properties.SignatureTimeStampData{BaseTimeStampData: token(0)}, f.element(t, "sts")),
			prop(&properties.CompleteCertificateRefsData{CertRefs: []properties.CertRef{certRef(f.intermediate.Cert)}}),
			prop(&properties.CompleteCertificateRefsData{CertRefs: []properties.CertRef{certRef(f.intermediate.Cert)}}),
			prop(&properties.CompleteRevocationRefsData{CRLRefs: []properties.CRLRef{crlRef(f.crl)}}),
		}, KindDuplicateProperty},
		{"two revocation refs", []Option{WithTimeStampVerifier(newFakeTSA())}, []PropertyInput{sc,
			propAt(&properties.SignatureTimeStampData{BaseTimeStampData: token(0)}, f.element(t, "sts")),
			prop(&properties.CompleteCertificateRefsData{CertRefs: []properties.CertRef{certRef(f.intermediate.Cert)}}),
			prop(&properties.CompleteRevocationRefsData{CRLRefs: []properties.CRLRef{crlRef(f.crl)}}),
			prop(&properties.CompleteRevocationRefsData{CRLRefs: []properties.CRLRef{crlRef(f.crl)}}),
		}, KindDuplicateProperty},
		{"other data without verifier", nil, []PropertyInput{sc, prop(&properties.OtherData{Name: "Custom"})}, KindVerifierUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...).Verify(context.Background(), f.input(t, tt.props...))
			if got := kindOf(err); got != tt.want {
				t.Errorf("Verify error = %v, want kind %v", err, tt.want)
			}
		})
	}
}

func TestVerifyRegisteredVerifiers(t *testing.T) {
	f := newFixture(t)
	sc := prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}})
	other := prop(&properties.OtherData{Name: "Custom", Value: 42})
	errRejected := errors.New("rejected")

	accept := PropertyVerifierFunc(func(_ context.Context, in PropertyInput, _ *Context) (properties.QualifyingProperty, error) {
		return &properties.GenericProperty{PropertyName: "Custom", Value: in.Data.(*properties.OtherData).Value}, nil
	})
	reject := PropertyVerifierFunc(func(context.Context, PropertyInput, *Context) (properties.QualifyingProperty, error) {
		return nil, errRejected
	})

	res, err := New(WithPropertyVerifier("Custom", accept)).Verify(context.Background(), f.input(t, sc, other))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got := res.Find("Custom")[0].Property.(*properties.GenericProperty).Value; got != 42 {
		t.Errorf("Value = %v, want 42", got)
	}

	_, err = New(WithPropertyVerifier("Custom", reject)).Verify(context.Background(), f.input(t, sc, other))
	if !errors.Is(err, ErrInvalidProperty) || !errors.Is(err, errRejected) {
		t.Errorf("error = %v, want InvalidProperty wrapping the verifier error", err)
	}

	structure := StructureVerifierFunc(func(properties.DataObject) error { return errRejected })
	_, err = New(WithPropertyVerifier("Custom", accept), WithStructureVerifier("Custom", structure)).
		Verify(context.Background(), f.input(t, sc, other))
	if !errors.Is(err, ErrStructure) {
		t.Errorf("structure verifier: error = %v, want StructureError", err)
	}

	signature := SignatureVerifierFunc(func(context.Context, *Result) error { return errRejected })
	_, err = New(WithSignatureVerifier(signature)).Verify(context.Background(), f.input(t, sc))
	if !errors.Is(err, errRejected) {
		t.Errorf("signature verifier: error = %v, want the verifier error", err)
	}
}

func TestVerifySigningTimeInFuture(t *testing.T) {
	f := newFixture(t)
	clock := clockwork.NewFakeClockAt(baseTime)
	sc := prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}})
	v := New(WithClock(clock), WithSigningTimeTolerance(time.Minute))

	if _, err := v.Verify(context.Background(), f.input(t, sc, prop(&properties.SigningTimeData{Time: baseTime.Add(30 * time.Second)}))); err != nil {
		t.Errorf("within tolerance: %v", err)
	}
	_, err := v.Verify(context.Background(), f.input(t, sc, prop(&properties.SigningTimeData{Time: baseTime.Add(2 * time.Minute)})))
	if !errors.Is(err, ErrInvalidProperty) {
		t.Errorf("beyond tolerance: error = %v, want InvalidProperty", err)
	}
}

func TestVerifyCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Verify(ctx, f.input(t, prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}})))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestVerifyRequiresContext(t *testing.T) {
	_, err := New().Verify(context.Background(), &Input{})
	if !errors.Is(err, ErrStructure) {
		t.Errorf("error = %v, want StructureError", err)
	}
}
