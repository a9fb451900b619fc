package cli

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/georgepadayatti/goxades/certvalidator"
	"github.com/georgepadayatti/goxades/config"
	"github.com/georgepadayatti/goxades/policy"
	"github.com/georgepadayatti/goxades/properties"
	"github.com/georgepadayatti/goxades/timestamps"
	"github.com/georgepadayatti/goxades/unmarshal"
	"github.com/georgepadayatti/goxades/verification"
)

// VerifyOptions contains options for the verify command. Flags extend the
// configuration file.
type VerifyOptions struct {
	ConfigFile         string
	Roots              []string
	TrustStore         string
	TrustStorePassword string
	Intermediates      []string
	CRLs               []string
	TSARoots           []string
	Detached           []string
	LogLevel           string
	RequireSigningCert bool
	CoreValidation     bool
	GracePeriod        time.Duration
	JSON               bool
	Verbose            bool
}

func newVerifyCommand() *cobra.Command {
	var opts VerifyOptions

	cmd := &cobra.Command{
		Use:   "verify [OPTIONS] FILE",
		Short: "Verify the XAdES signature(s) of an XML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := verifyDocument(cmd.Context(), args[0], &opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.JSON {
				if err := outputJSON(out, output); err != nil {
					return err
				}
			} else {
				outputText(out, output, opts.Verbose)
			}
			for _, s := range output.Signatures {
				if s.Status == statusInvalid {
					return ErrInvalidSignatures
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.ConfigFile, "config", "c", "", "YAML verifier profile")
	flags.StringSliceVar(&opts.Roots, "root", nil, "Trust anchor certificate file (PEM or DER)")
	flags.StringVar(&opts.TrustStore, "trust-store", "", "PKCS#12 trust store")
	flags.StringVar(&opts.TrustStorePassword, "trust-store-password", "", "Trust store password")
	flags.StringSliceVar(&opts.Intermediates, "intermediate", nil, "Intermediate CA certificate file")
	flags.StringSliceVar(&opts.CRLs, "crl", nil, "CRL file")
	flags.StringSliceVar(&opts.TSARoots, "tsa-root", nil, "Timestamp authority trust anchor file")
	flags.StringArrayVar(&opts.Detached, "detached", nil, "Detached content as URI=FILE")
	flags.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&opts.RequireSigningCert, "require-signing-certificate", false, "Reject signatures without SigningCertificate")
	flags.BoolVar(&opts.CoreValidation, "core-validation", false, "Run XML-DSig core validation first")
	flags.DurationVar(&opts.GracePeriod, "grace-period", 0, "Minimum age of the earliest signature timestamp")
	flags.BoolVar(&opts.JSON, "json", false, "Output results in JSON format")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Show properties and data objects")

	return cmd
}

// profile merges the configuration file with the command line flags.
func profile(opts *VerifyOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		loaded, err := config.Load(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.Trust.Roots = append(cfg.Trust.Roots, opts.Roots...)
	cfg.Trust.Intermediates = append(cfg.Trust.Intermediates, opts.Intermediates...)
	cfg.Trust.CRLs = append(cfg.Trust.CRLs, opts.CRLs...)
	if opts.TrustStore != "" {
		cfg.Trust.TrustStore = opts.TrustStore
		cfg.Trust.TrustStorePassword = opts.TrustStorePassword
	}
	if len(opts.TSARoots) > 0 {
		if cfg.TimeStamps == nil {
			cfg.TimeStamps = &config.TimeStampConfig{}
		}
		cfg.TimeStamps.Roots = append(cfg.TimeStamps.Roots, opts.TSARoots...)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.RequireSigningCert {
		cfg.Verification.RequireSigningCertificate = true
	}
	if opts.CoreValidation {
		cfg.Verification.CoreValidation = true
	}
	if opts.GracePeriod > 0 {
		cfg.Verification.GracePeriod = opts.GracePeriod
	}
	return cfg, cfg.Validate()
}

// engine is the verifier and loader built from a profile.
type engine struct {
	verifier *verification.Verifier
	loader   *unmarshal.Loader
	registry *prometheus.Registry
}

func newEngine(cfg *config.Config, detached []string, logger *zap.Logger) (*engine, error) {
	trust, err := cfg.Trust.Load()
	if err != nil {
		return nil, err
	}
	validatorOpts := []certvalidator.Option{
		certvalidator.WithIntermediates(trust.Intermediates...),
		certvalidator.WithCRLs(trust.CRLs...),
		certvalidator.WithLogger(logger),
	}
	if cfg.Verification.RequireRevocation {
		validatorOpts = append(validatorOpts, certvalidator.RequireRevocation())
	}
	pkix := certvalidator.NewPKIXValidator(trust.Roots, validatorOpts...)

	loaderOpts := []unmarshal.Option{unmarshal.WithLogger(logger)}
	if cfg.Verification.CoreValidation {
		loaderOpts = append(loaderOpts, unmarshal.WithCoreVerification())
	}
	for _, d := range detached {
		uri, file, ok := strings.Cut(d, "=")
		if !ok || uri == "" || file == "" {
			return nil, fmt.Errorf("invalid detached content %q, want URI=FILE", d)
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read detached content: %w", err)
		}
		loaderOpts = append(loaderOpts, unmarshal.WithDetachedContent(uri, data))
	}
	loader := unmarshal.NewLoader(pkix, loaderOpts...)

	files, err := cfg.PolicyFiles()
	if err != nil {
		return nil, err
	}
	verifierOpts := []verification.Option{
		verification.WithLogger(logger),
		verification.WithCounterSignatureResolver(loader),
		verification.WithValidationDataRegistry(pkix),
		verification.WithPolicyProvider(policyFiles{files: &policy.FileProvider{Files: files}}),
		verification.WithSigningTimeTolerance(cfg.Verification.SigningTimeTolerance),
		verification.WithConcurrency(cfg.Verification.BatchConcurrency),
	}
	if cfg.TimeStamps != nil && len(cfg.TimeStamps.Roots) > 0 {
		roots, intermediates, err := cfg.TimeStamps.Load()
		if err != nil {
			return nil, err
		}
		verifierOpts = append(verifierOpts, verification.WithTimeStampVerifier(
			timestamps.NewVerifier(roots, intermediates, cfg.Verification.MaxTimeStampAccuracy)))
	}
	if cfg.Verification.RequireSigningCertificate {
		verifierOpts = append(verifierOpts, verification.RequireSigningCertificate())
	}
	if cfg.Verification.GracePeriod > 0 {
		verifierOpts = append(verifierOpts, verification.WithSignatureVerifier(
			verification.GracePeriodVerifier{Period: cfg.Verification.GracePeriod}))
	}

	e := &engine{loader: loader}
	if cfg.Metrics.Enabled {
		e.registry = prometheus.NewRegistry()
		verifierOpts = append(verifierOpts, verification.WithMetrics(
			verification.NewPrometheusMetricsRecorderWithRegistry(e.registry)))
	}
	e.verifier = verification.New(verifierOpts...)
	return e, nil
}

// policyFiles looks policy identifiers up in the form the profile keys
// them by.
type policyFiles struct {
	files *policy.FileProvider
}

func (p policyFiles) Document(ctx context.Context, identifier string) ([]byte, error) {
	if id, err := config.ProcessPolicyIdentifier(identifier); err == nil {
		identifier = id
	}
	return p.files.Document(ctx, identifier)
}

// verifyDocument performs the verification of every top-level signature.
func verifyDocument(ctx context.Context, inputPath string, opts *VerifyOptions) (*VerifyOutput, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := profile(opts)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Logging.Build()
	if err != nil {
		return nil, err
	}
	defer func() { _ = logger.Sync() }()

	e, err := newEngine(cfg, opts.Detached, logger)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromFile(inputPath); err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	inputs, err := e.loader.LoadDocument(ctx, doc)
	if err != nil {
		return nil, err
	}
	outcomes, err := e.verifier.VerifyAll(ctx, inputs)
	if err != nil {
		return nil, err
	}

	if e.registry != nil {
		if err := prometheus.WriteToTextfile(cfg.Metrics.Textfile, e.registry); err != nil {
			logger.Warn("writing metrics failed", zap.Error(err))
		}
	}

	output := &VerifyOutput{File: inputPath}
	for i, o := range outcomes {
		output.Signatures = append(output.Signatures, signatureReport(i+1, inputs[i], o))
	}
	return output, nil
}

const (
	statusValid   = "VALID"
	statusInvalid = "INVALID"
)

// VerifyOutput is the complete verification output of a document.
type VerifyOutput struct {
	File       string             `json:"file"`
	Signatures []*SignatureReport `json:"signatures"`
}

// SignatureReport is a JSON-serializable verification result for a single
// signature.
type SignatureReport struct {
	Index       int                `json:"index"`
	ID          string             `json:"id,omitempty"`
	Status      string             `json:"status"`
	Form        string             `json:"form,omitempty"`
	Signer      *CertificateInfo   `json:"signer,omitempty"`
	Properties  []PropertyReport   `json:"properties,omitempty"`
	DataObjects []DataObjectReport `json:"data_objects,omitempty"`
	Failure     *FailureReport     `json:"failure,omitempty"`
}

// CertificateInfo contains certificate information for JSON output.
type CertificateInfo struct {
	Subject   string `json:"subject"`
	Issuer    string `json:"issuer"`
	Serial    string `json:"serial"`
	NotBefore string `json:"not_before"`
	NotAfter  string `json:"not_after"`
}

// PropertyReport is one verified qualifying property.
type PropertyReport struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

// DataObjectReport lists the properties that apply to a signed data object.
type DataObjectReport struct {
	Reference  string   `json:"reference,omitempty"`
	URI        string   `json:"uri"`
	Properties []string `json:"properties,omitempty"`
}

// FailureReport describes why a signature is invalid.
type FailureReport struct {
	Kind     string `json:"kind,omitempty"`
	Property string `json:"property,omitempty"`
	Rule     string `json:"rule,omitempty"`
	Ref      string `json:"ref,omitempty"`
	Message  string `json:"message"`
}

func signatureReport(index int, in *verification.Input, o verification.Outcome) *SignatureReport {
	report := &SignatureReport{Index: index, ID: in.Signature.ID}
	if o.Err != nil {
		report.Status = statusInvalid
		report.Failure = &FailureReport{Message: o.Err.Error()}
		var verr *verification.Error
		if errors.As(o.Err, &verr) {
			report.Failure.Kind = verr.Kind.String()
			report.Failure.Property = verr.Property
			report.Failure.Rule = verr.Rule
			report.Failure.Ref = verr.Ref
		}
		if in.Context != nil {
			report.Signer = certificateInfo(in.Context.SigningCertificate())
		}
		return report
	}

	result := o.Result
	report.Status = statusValid
	report.Form = result.Form.String()
	report.Signer = certificateInfo(result.SigningCertificate)
	for _, p := range result.Properties {
		report.Properties = append(report.Properties, PropertyReport{
			Name:   p.Property.Name(),
			Kind:   p.Property.Kind().String(),
			Detail: propertyDetail(p.Property),
		})
	}
	for _, obj := range result.DataObjects {
		dr := DataObjectReport{Reference: obj.Reference.ID, URI: obj.Reference.URI}
		for _, p := range obj.Properties() {
			dr.Properties = append(dr.Properties, p.Name())
		}
		report.DataObjects = append(report.DataObjects, dr)
	}
	return report
}

func propertyDetail(p properties.QualifyingProperty) string {
	switch p := p.(type) {
	case properties.TimeStampProperty:
		return p.Timestamp().UTC().Format(time.RFC3339)
	case *properties.SigningTime:
		return p.Time.UTC().Format(time.RFC3339)
	case *properties.SigningCertificate:
		if len(p.Certificates) > 0 {
			return p.Certificates[0].Subject.String()
		}
	case *properties.SignaturePolicy:
		if p.Implied {
			return "implied"
		}
		return p.Identifier
	case *properties.SignerRole:
		return strings.Join(p.ClaimedRoles, ", ")
	case *properties.DataObjectFormat:
		return strings.TrimSpace(p.ObjectRef + " " + p.MimeType)
	case *properties.CommitmentType:
		return p.URI
	case *properties.CounterSignature:
		if p.SigningCertificate != nil {
			return fmt.Sprintf("%s by %s", p.Form, p.SigningCertificate.Subject)
		}
		return p.Form
	}
	return ""
}

func certificateInfo(cert *x509.Certificate) *CertificateInfo {
	if cert == nil {
		return nil
	}
	return &CertificateInfo{
		Subject:   cert.Subject.String(),
		Issuer:    cert.Issuer.String(),
		Serial:    cert.SerialNumber.String(),
		NotBefore: cert.NotBefore.Format(time.RFC3339),
		NotAfter:  cert.NotAfter.Format(time.RFC3339),
	}
}

// outputJSON outputs the results in JSON format.
func outputJSON(w io.Writer, output *VerifyOutput) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

// outputText outputs the results in human-readable text format.
func outputText(w io.Writer, output *VerifyOutput, verbose bool) {
	fmt.Fprintf(w, "XAdES Verification Results\n")
	fmt.Fprintf(w, "==========================\n\n")
	fmt.Fprintf(w, "Found %d signature(s) in %s\n\n", len(output.Signatures), output.File)

	for _, s := range output.Signatures {
		fmt.Fprintf(w, "Signature #%d", s.Index)
		if s.ID != "" {
			fmt.Fprintf(w, " (%s)", s.ID)
		}
		fmt.Fprintf(w, "\n------------\n")
		fmt.Fprintf(w, "  Status: %s %s\n", getStatusIcon(s.Status), s.Status)
		if s.Form != "" {
			fmt.Fprintf(w, "  Form: XAdES-%s\n", s.Form)
		}
		if s.Signer != nil {
			fmt.Fprintf(w, "  Signer: %s\n", s.Signer.Subject)
		}

		if f := s.Failure; f != nil {
			fmt.Fprintf(w, "\n  Failure:\n")
			if f.Kind != "" {
				fmt.Fprintf(w, "    Kind: %s\n", f.Kind)
			}
			if f.Property != "" {
				fmt.Fprintf(w, "    Property: %s\n", f.Property)
			}
			if f.Rule != "" {
				fmt.Fprintf(w, "    Rule: %s\n", f.Rule)
			}
			if f.Ref != "" {
				fmt.Fprintf(w, "    Reference: %s\n", f.Ref)
			}
			fmt.Fprintf(w, "    Message: %s\n", f.Message)
		}

		if verbose {
			if s.Signer != nil {
				fmt.Fprintf(w, "\n  Certificate Details:\n")
				fmt.Fprintf(w, "    Issuer: %s\n", s.Signer.Issuer)
				fmt.Fprintf(w, "    Serial: %s\n", s.Signer.Serial)
				fmt.Fprintf(w, "    Valid: %s to %s\n", s.Signer.NotBefore, s.Signer.NotAfter)
			}
			if len(s.Properties) > 0 {
				fmt.Fprintf(w, "\n  Properties:\n")
				for _, p := range s.Properties {
					if p.Detail != "" {
						fmt.Fprintf(w, "    - %s: %s\n", p.Name, p.Detail)
						continue
					}
					fmt.Fprintf(w, "    - %s\n", p.Name)
				}
			}
			if len(s.DataObjects) > 0 {
				fmt.Fprintf(w, "\n  Data Objects:\n")
				for _, d := range s.DataObjects {
					fmt.Fprintf(w, "    - %s", d.URI)
					if len(d.Properties) > 0 {
						fmt.Fprintf(w, " [%s]", strings.Join(d.Properties, ", "))
					}
					fmt.Fprintln(w)
				}
			}
		}
		fmt.Fprintln(w)
	}
}

// getStatusIcon returns an icon for the status.
func getStatusIcon(status string) string {
	switch status {
	case statusValid:
		return "[OK]"
	case statusInvalid:
		return "[FAIL]"
	default:
		return "[?]"
	}
}
