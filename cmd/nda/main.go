// Command nda exercises the envelope and template flows against a real
// DocuSign developer account. One command per invocation; credentials come
// from the environment, everything else from flags.
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"esign/internal/config"
	"esign/internal/docusign"
	"esign/internal/docusign/auth"
	"esign/internal/envelope"
	"esign/internal/logging"
	"esign/internal/nda"
	"esign/internal/template"
)

const usage = `usage: nda <command> [flags]

commands:
  send-single          send a document to one signer (anchored tabs)
  send-group           send via an ephemeral signing group (anchored tabs)
  send-group-freeform  send via an ephemeral signing group (signer places tabs)
  status               print an envelope's lifecycle status
  download             download the signed document of a completed envelope
  void                 void a sent envelope
  template-create      register a document as a reusable template
  template-get         print one template's details
  template-list        list templates in the account
  template-send        send an envelope from a template to one signer
  template-send-group  send from a template via an ephemeral signing group
  template-update      replace a template's document
  template-delete      delete a template
  consent-url          print the one-time consent URL for the impersonated user
`

// signerList collects repeated -signer "Name=email" flags.
type signerList []nda.Signer

func (s *signerList) String() string { return fmt.Sprint([]nda.Signer(*s)) }

func (s *signerList) Set(v string) error {
	name, email, ok := strings.Cut(v, "=")
	if !ok || name == "" || email == "" {
		return fmt.Errorf("want Name=email, got %q", v)
	}
	*s = append(*s, nda.Signer{Name: name, Email: email})
	return nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]
	args := os.Args[2:]

	cfg := config.LoadCLI()
	logging.Init("nda", cfg.LogFormat)

	key, err := auth.LoadPrivateKey(cfg.PrivateKeyPath)
	if err != nil {
		fail(err)
	}
	tokens := &auth.Client{
		ClientID:     cfg.ClientID,
		UserID:       cfg.ImpersonatedUserID,
		AuthServer:   cfg.AuthServer,
		PrivateKey:   key,
		Scopes:       cfg.Scopes,
		ExpiryMargin: cfg.TokenExpiryMargin,
		HTTP:         &http.Client{Timeout: cfg.CallTimeout},
	}
	api := &docusign.Client{
		HTTP:     &http.Client{Timeout: cfg.CallTimeout},
		Sessions: tokens,
		Breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "docusign",
			MaxRequests: 3,
			Timeout:     20 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
		}),
		Limiter:     rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		CallTimeout: cfg.CallTimeout,
	}
	envelopes := &envelope.Service{API: api}
	templates := &template.Service{
		API:                api,
		SignaturePosition:  signPosition(cfg.DocuSign),
		DateSignedPosition: datePosition(cfg.DocuSign),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch command {
	case "send-single":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		doc := fs.String("doc", "", "path to the PDF to send")
		var signers signerList
		fs.Var(&signers, "signer", "signer as Name=email")
		webhookURL := fs.String("webhook-url", "", "callback URL to register (optional)")
		includeDocs := fs.Bool("include-documents", false, "embed signed documents in callbacks")
		parse(fs, args)

		req, err := buildRequest(cfg.DocuSign, *doc, signers, *webhookURL, *includeDocs)
		if err != nil {
			fail(err)
		}
		resp, err := envelopes.SendSingle(ctx, req)
		if err != nil {
			fail(err)
		}
		fmt.Printf("envelope %s status=%s\n", resp.EnvelopeID, resp.Status)

	case "send-group", "send-group-freeform":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		doc := fs.String("doc", "", "path to the PDF to send")
		var signers signerList
		fs.Var(&signers, "signer", "signer as Name=email, repeatable")
		groupName := fs.String("group-name", "", "signing group name prefix")
		webhookURL := fs.String("webhook-url", "", "callback URL to register (optional)")
		includeDocs := fs.Bool("include-documents", false, "embed signed documents in callbacks")
		parse(fs, args)

		req, err := buildRequest(cfg.DocuSign, *doc, signers, *webhookURL, *includeDocs)
		if err != nil {
			fail(err)
		}
		if *groupName != "" {
			req.GroupName = *groupName
		}
		send := envelopes.SendWithSigningGroupAnchored
		if command == "send-group-freeform" {
			send = envelopes.SendWithSigningGroupFreeForm
		}
		resp, err := send(ctx, req)
		if err != nil {
			fail(err)
		}
		fmt.Printf("envelope %s status=%s\n", resp.EnvelopeID, resp.Status)

	case "status":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		envelopeID := fs.String("envelope", "", "envelope id")
		parse(fs, args)

		status, err := envelopes.GetStatus(ctx, *envelopeID)
		if err != nil {
			fail(err)
		}
		fmt.Printf("envelope %s status=%s\n", *envelopeID, status)

	case "download":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		envelopeID := fs.String("envelope", "", "envelope id")
		out := fs.String("out", "", "output path (default signed_<envelope>.pdf)")
		parse(fs, args)

		pdf, err := envelopes.DownloadSignedDocument(ctx, *envelopeID)
		if err != nil {
			fail(err)
		}
		path := *out
		if path == "" {
			path = "signed_" + *envelopeID + ".pdf"
		}
		if err := os.WriteFile(path, pdf, 0o644); err != nil {
			fail(err)
		}
		fmt.Printf("wrote %s (%d bytes)\n", path, len(pdf))

	case "void":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		envelopeID := fs.String("envelope", "", "envelope id")
		reason := fs.String("reason", "", "void reason")
		parse(fs, args)

		resp, err := envelopes.Void(ctx, *envelopeID, *reason)
		if err != nil {
			fail(err)
		}
		fmt.Printf("envelope %s status=%s\n", resp.EnvelopeID, resp.Status)

	case "template-create":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		doc := fs.String("doc", "", "path to the PDF")
		name := fs.String("name", "", "template name")
		description := fs.String("description", "", "template description")
		parse(fs, args)

		docBase64, docName, err := readDocument(*doc)
		if err != nil {
			fail(err)
		}
		info, err := templates.Create(ctx, docBase64, docName, *name, *description)
		if err != nil {
			fail(err)
		}
		fmt.Printf("template %s name=%q\n", info.TemplateID, info.Name)

	case "template-get":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		templateID := fs.String("template", "", "template id")
		parse(fs, args)

		info, err := templates.Get(ctx, *templateID)
		if err != nil {
			fail(err)
		}
		fmt.Printf("template %s name=%q description=%q\n", info.TemplateID, info.Name, info.Description)

	case "template-list":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		search := fs.String("search", "", "filter templates by name")
		parse(fs, args)

		infos, err := templates.List(ctx, *search)
		if err != nil {
			fail(err)
		}
		for _, info := range infos {
			fmt.Printf("template %s name=%q\n", info.TemplateID, info.Name)
		}
		fmt.Printf("%d templates\n", len(infos))

	case "template-send":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		templateID := fs.String("template", "", "template id")
		var signers signerList
		fs.Var(&signers, "signer", "signer as Name=email")
		parse(fs, args)

		if len(signers) != 1 {
			fail(&docusign.ValidationError{Message: "template-send wants exactly one -signer"})
		}
		resp, err := templates.SendFromTemplate(ctx, *templateID, signers[0])
		if err != nil {
			fail(err)
		}
		fmt.Printf("envelope %s status=%s\n", resp.EnvelopeID, resp.Status)

	case "template-send-group":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		templateID := fs.String("template", "", "template id")
		var signers signerList
		fs.Var(&signers, "signer", "signer as Name=email, repeatable")
		groupName := fs.String("group-name", "", "signing group name prefix")
		parse(fs, args)

		resp, err := templates.SendFromTemplateWithSigningGroup(ctx, *templateID, signers, *groupName)
		if err != nil {
			fail(err)
		}
		fmt.Printf("envelope %s status=%s\n", resp.EnvelopeID, resp.Status)

	case "template-update":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		templateID := fs.String("template", "", "template id")
		doc := fs.String("doc", "", "path to the replacement PDF")
		parse(fs, args)

		docBase64, docName, err := readDocument(*doc)
		if err != nil {
			fail(err)
		}
		info, err := templates.UpdateDocument(ctx, *templateID, docBase64, docName)
		if err != nil {
			fail(err)
		}
		fmt.Printf("template %s updated\n", info.TemplateID)

	case "template-delete":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		templateID := fs.String("template", "", "template id")
		parse(fs, args)

		if err := templates.Delete(ctx, *templateID); err != nil {
			fail(err)
		}
		fmt.Printf("template %s deleted\n", *templateID)

	case "consent-url":
		fmt.Println(tokens.ConsentURL())

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}
}

func parse(fs *flag.FlagSet, args []string) {
	_ = fs.Parse(args)
}

func buildRequest(cfg config.DocuSign, docPath string, signers []nda.Signer, webhookURL string, includeDocs bool) (nda.Request, error) {
	docBase64, docName, err := readDocument(docPath)
	if err != nil {
		return nda.Request{}, err
	}

	req := nda.NewRequest(docBase64, docName)
	req.SignaturePosition = signPosition(cfg)
	req.DateSignedPosition = datePosition(cfg)
	for _, s := range signers {
		req = req.WithSigner(s.Name, s.Email)
	}
	if webhookURL != "" {
		req = req.WithWebhook(nda.EventNotification{
			URL:              webhookURL,
			IncludeDocuments: includeDocs,
			LoggingEnabled:   true,
		})
	}
	return req, nil
}

func readDocument(path string) (string, string, error) {
	if path == "" {
		return "", "", &docusign.ValidationError{Message: "-doc is required"}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read document: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), filepath.Base(path), nil
}

func signPosition(cfg config.DocuSign) nda.TabPosition {
	return nda.TabPosition{
		AnchorString:  cfg.AnchorString,
		AnchorUnits:   "pixels",
		AnchorXOffset: cfg.SignXOffset,
		AnchorYOffset: cfg.SignYOffset,
	}
}

func datePosition(cfg config.DocuSign) nda.TabPosition {
	return nda.TabPosition{
		AnchorString:  cfg.AnchorString,
		AnchorUnits:   "pixels",
		AnchorXOffset: cfg.DateSignedXOffset,
		AnchorYOffset: cfg.DateSignedYOffset,
	}
}

// fail prints the error kind and message, then exits non-zero.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", errorKind(err), err)
	os.Exit(1)
}

func errorKind(err error) string {
	var (
		authErr      *docusign.AuthError
		consentErr   *docusign.ConsentRequiredError
		validErr     *docusign.ValidationError
		notFound     *docusign.NotFoundError
		notCompleted *docusign.NotCompletedError
		transient    *docusign.TransientError
	)
	switch {
	case errors.As(err, &consentErr):
		return "consent required"
	case errors.As(err, &authErr):
		return "auth error"
	case errors.As(err, &validErr):
		return "validation error"
	case errors.As(err, &notFound):
		return "not found"
	case errors.As(err, &notCompleted):
		return "not completed"
	case errors.As(err, &transient):
		return "transient error"
	default:
		return "error"
	}
}
