package verification

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/beevik/etree"

	"github.com/georgepadayatti/goxades/generated/w3c"
	"github.com/georgepadayatti/goxades/internal/testpki"
	"github.com/georgepadayatti/goxades/properties"
	"github.com/georgepadayatti/goxades/xmlsig"
)

// fixtureDocument is an enveloped signature over two items whose unsigned
// signature properties hold one element of each kind the A form seals, and a
// countersignature at the end.
const fixtureDocument = `<root xmlns="urn:example:doc">
  <item Id="obj-1">first</item>
  <item Id="obj-2">second</item>
  <ds:Signature xmlns:ds="http://www.w3.org/2000/09/xmldsig#" Id="sig-1">
    <ds:SignedInfo>
      <ds:CanonicalizationMethod Algorithm="http://www.w3.org/2001/10/xml-exc-c14n#"/>
      <ds:SignatureMethod Algorithm="http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256"/>
      <ds:Reference Id="ref-1" URI="#obj-1">
        <ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
        <ds:DigestValue>AAAA</ds:DigestValue>
      </ds:Reference>
      <ds:Reference Id="ref-2" URI="#obj-2">
        <ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
        <ds:DigestValue>AAAA</ds:DigestValue>
      </ds:Reference>
      <ds:Reference URI="#props" Type="http://uri.etsi.org/01903#SignedProperties">
        <ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
        <ds:DigestValue>AAAA</ds:DigestValue>
      </ds:Reference>
    </ds:SignedInfo>
    <ds:SignatureValue Id="sigval">c2lnbmF0dXJl</ds:SignatureValue>
    <ds:KeyInfo Id="keyinfo"><ds:KeyName>signer</ds:KeyName></ds:KeyInfo>
    <ds:Object Id="extra" MimeType="text/plain">extra</ds:Object>
    <ds:Object>
      <xades:QualifyingProperties xmlns:xades="http://uri.etsi.org/01903/v1.3.2#" Target="#sig-1">
        <xades:SignedProperties Id="props"/>
        <xades:UnsignedProperties>
          <xades:UnsignedSignatureProperties>
            <xades:SignatureTimeStamp Id="sts"/>
            <xades:CompleteCertificateRefs Id="ccr"/>
            <xades:CompleteRevocationRefs Id="crr"/>
            <xades:SigAndRefsTimeStamp Id="sarts"/>
            <xades:CertificateValues Id="cv"/>
            <xades:RevocationValues Id="rv"/>
            <xades:ArchiveTimeStamp Id="ats"/>
            <xades:CounterSignature Id="cs">
              <ds:Signature Id="csig">
                <ds:SignedInfo>
                  <ds:CanonicalizationMethod Algorithm="http://www.w3.org/2001/10/xml-exc-c14n#"/>
                  <ds:SignatureMethod Algorithm="http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256"/>
                  <ds:Reference Id="cs-ref" URI="#sigval" Type="http://uri.etsi.org/01903#CountersignedSignature">
                    <ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
                    <ds:DigestValue>AAAA</ds:DigestValue>
                  </ds:Reference>
                </ds:SignedInfo>
                <ds:SignatureValue Id="csigval">Y291bnRlcg==</ds:SignatureValue>
              </ds:Signature>
            </xades:CounterSignature>
          </xades:UnsignedSignatureProperties>
        </xades:UnsignedProperties>
      </xades:QualifyingProperties>
    </ds:Object>
  </ds:Signature>
</root>`

// baseTime is T0 of the fake timestamp authority.
var baseTime = time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	doc      *etree.Document
	sig      *xmlsig.Signature
	resolver *xmlsig.DocumentResolver

	root, intermediate, leaf *testpki.Authority
	crl                      *x509.RevocationList
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(fixtureDocument); err != nil {
		t.Fatalf("ReadFromString: %v", err)
	}
	resolver, err := xmlsig.NewDocumentResolver(doc.Root())
	if err != nil {
		t.Fatalf("NewDocumentResolver: %v", err)
	}
	sig, err := xmlsig.ParseSignature(doc.Root().SelectElement("Signature"))
	if err != nil {
		t.Fatalf("ParseSignature: %v", err)
	}
	root, intermediate, leaf := testpki.Chain(t)
	return &fixture{
		doc:          doc,
		sig:          sig,
		resolver:     resolver,
		root:         root,
		intermediate: intermediate,
		leaf:         leaf,
		crl:          intermediate.CRL(t, 7, baseTime.Add(-time.Hour)),
	}
}

func (f *fixture) chain() []*x509.Certificate {
	return []*x509.Certificate{f.leaf.Cert, f.intermediate.Cert, f.root.Cert}
}

// context builds a verification context over the fixture chain. With no
// CRLs given the fixture CRL is used.
func (f *fixture) context(t *testing.T, crls ...*x509.RevocationList) *Context {
	t.Helper()
	if len(crls) == 0 {
		crls = []*x509.RevocationList{f.crl}
	}
	vc, err := NewContext(CertificationChainData{
		Chain: f.chain(),
		CRLs:  crls,
	}, NewSignedObjectsData(f.sig.DataObjectReferences(), f.resolver))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	return vc
}

func (f *fixture) input(t *testing.T, props ...PropertyInput) *Input {
	t.Helper()
	return &Input{
		Signature:  f.sig,
		Properties: props,
		Context:    f.context(t),
		Resolver:   f.resolver,
	}
}

func (f *fixture) element(t *testing.T, id string) *etree.Element {
	t.Helper()
	el, err := f.resolver.Resolve("#" + id)
	if err != nil {
		t.Fatalf("Resolve(#%s): %v", id, err)
	}
	return el
}

func prop(d properties.DataObject) PropertyInput {
	return PropertyInput{Data: d}
}

func propAt(d properties.DataObject, el *etree.Element) PropertyInput {
	return PropertyInput{Data: d, Element: el}
}

func sha256Of(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

func certRef(cert *x509.Certificate) properties.CertRef {
	return properties.CertRef{
		IssuerDN:        cert.Issuer.String(),
		SerialNumber:    cert.SerialNumber,
		DigestAlgorithm: w3c.AlgSHA256,
		DigestValue:     sha256Of(cert.Raw),
	}
}

func crlRef(crl *x509.RevocationList) properties.CRLRef {
	return properties.CRLRef{
		IssuerDN:        crl.Issuer.String(),
		IssueTime:       crl.ThisUpdate,
		Number:          crl.Number,
		DigestAlgorithm: w3c.AlgSHA256,
		DigestValue:     sha256Of(crl.Raw),
	}
}

func b64(b []byte) []byte {
	return []byte(base64.StdEncoding.EncodeToString(b))
}

// token returns timestamp data whose fake token verifies at T0 + offset
// seconds.
func token(offset int) properties.BaseTimeStampData {
	return properties.BaseTimeStampData{
		CanonicalizationAlgorithm: w3c.AlgExcC14N,
		Tokens:                    [][]byte{b64([]byte(fmt.Sprintf("ts:%d", offset)))},
	}
}

// fakeTSA accepts tokens of the form "ts:<seconds>" and records the digest
// input each one was checked against.
type fakeTSA struct {
	mu     sync.Mutex
	inputs map[string][]byte
}

func newFakeTSA() *fakeTSA {
	return &fakeTSA{inputs: make(map[string][]byte)}
}

func (f *fakeTSA) Verify(_ context.Context, tok, data []byte) (time.Time, error) {
	s, ok := strings.CutPrefix(string(tok), "ts:")
	if !ok {
		return time.Time{}, fmt.Errorf("malformed token %q", tok)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return time.Time{}, err
	}
	f.mu.Lock()
	f.inputs[string(tok)] = data
	f.mu.Unlock()
	return baseTime.Add(time.Duration(n) * time.Second), nil
}

func (f *fakeTSA) input(offset int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inputs[fmt.Sprintf("ts:%d", offset)]
}

func canonical(t *testing.T, el *etree.Element) []byte {
	t.Helper()
	c, err := xmlsig.NewCanonicalizer(w3c.AlgExcC14N, "")
	if err != nil {
		t.Fatalf("NewCanonicalizer: %v", err)
	}
	out, err := xmlsig.Canonicalize(c, el)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	return out
}

type recordingRegistry struct {
	certs []*x509.Certificate
	crls  []*x509.RevocationList
}

func (r *recordingRegistry) AddCertificates(certs []*x509.Certificate) {
	r.certs = append(r.certs, certs...)
}

func (r *recordingRegistry) AddCRLs(crls []*x509.RevocationList) {
	r.crls = append(r.crls, crls...)
}

// fullProperties returns a valid A form property set anchored at the
// fixture elements. Timestamps verify at T0 (signature), T0+10s (SigAndRefs)
// and T0+20s (archive).
func (f *fixture) fullProperties(t *testing.T) []PropertyInput {
	t.Helper()
	return []PropertyInput{
		prop(&properties.SigningTimeData{Time: baseTime.Add(-time.Minute)}),
		prop(&properties.SigningCertificateData{CertRefs: []properties.CertRef{certRef(f.leaf.Cert)}}),
		propAt(&properties.SignatureTimeStampData{BaseTimeStampData: token(0)}, f.element(t, "sts")),
		propAt(&properties.CompleteCertificateRefsData{
			CertRefs: []properties.CertRef{certRef(f.intermediate.Cert), certRef(f.root.Cert)},
		}, f.element(t, "ccr")),
		propAt(&properties.CompleteRevocationRefsData{
			CRLRefs: []properties.CRLRef{crlRef(f.crl)},
		}, f.element(t, "crr")),
		propAt(&properties.SigAndRefsTimeStampData{BaseTimeStampData: token(10)}, f.element(t, "sarts")),
		propAt(&properties.CertificateValuesData{
			Certificates: [][]byte{b64(f.intermediate.Cert.Raw), b64(f.root.Cert.Raw)},
		}, f.element(t, "cv")),
		propAt(&properties.RevocationValuesData{CRLs: [][]byte{b64(f.crl.Raw)}}, f.element(t, "rv")),
		propAt(&properties.ArchiveTimeStampData{BaseTimeStampData: token(20)}, f.element(t, "ats")),
	}
}
