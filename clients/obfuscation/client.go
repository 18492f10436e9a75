package obfuscation

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"

	crypt "github.com/estafette/estafette-ci-crypt"
	"github.com/estafette/estafette-ci-notifier/api"
)

const maxLengthToSkipObfuscation = 3

// Client hides authorization values and other secrets from the logs
//go:generate mockgen -package=obfuscation -destination ./mock.go -source=client.go
type Client interface {
	CollectSecrets(targets []api.NotifyTarget, configBytes []byte, pipeline string) (err error)
	Obfuscate(input string) string
	ObfuscateSecrets(input string) string
}

// NewClient returns a new Client
func NewClient(secretHelper crypt.SecretHelper) (Client, error) {
	return &client{
		secretHelper: secretHelper,
	}, nil
}

type client struct {
	secretHelper crypt.SecretHelper
	replacer     *strings.Replacer
}

func (ob *client) CollectSecrets(targets []api.NotifyTarget, configBytes []byte, pipeline string) (err error) {

	replacerStrings := []string{}

	// collect authorization values and credentials in urls of all targets
	for _, t := range targets {
		values := []string{}
		if t.HasAuthorization() {
			values = append(values, t.Authorization)
			// also hide the token without its scheme, e.g. 'OAuth <token>'
			if parts := strings.Fields(t.Authorization); len(parts) > 1 {
				values = append(values, parts[len(parts)-1])
			}
		}
		values = append(values, getURLSecrets(t.URL)...)

		replacerStrings = append(replacerStrings, ob.getReplacerStrings(values)...)
	}

	// collect all decrypted envelopes from the configuration
	if len(configBytes) > 0 && ob.secretHelper != nil {
		values, err := ob.secretHelper.GetAllSecretValues(string(configBytes), pipeline)
		if err != nil {
			return err
		}

		replacerStrings = append(replacerStrings, ob.getReplacerStrings(values)...)
	}

	// replace all secret values with obfuscated string
	ob.replacer = strings.NewReplacer(replacerStrings...)

	return nil
}

func getURLSecrets(rawURL string) (values []string) {
	if rawURL == "" {
		return
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return
	}

	if password, ok := u.User.Password(); ok {
		values = append(values, password)
	}

	for _, queryValues := range u.Query() {
		values = append(values, queryValues...)
	}

	return
}

func (ob *client) getReplacerStrings(values []string) (replacerStrings []string) {

	replacerStrings = []string{}

	for _, v := range values {
		replacerStrings = append(replacerStrings, getLineReplacerStrings(v)...)

		// if value looks like base64 decode it
		decodedValue, err := base64.StdEncoding.DecodeString(v)
		if err == nil {
			replacerStrings = append(replacerStrings, getLineReplacerStrings(string(decodedValue))...)
		}
	}

	return replacerStrings
}

func getLineReplacerStrings(value string) (replacerStrings []string) {
	for _, l := range strings.Split(value, "\n") {
		if len(l) > maxLengthToSkipObfuscation {
			replacerStrings = append(replacerStrings, l, "***")

			// split further if line contains \n (encoded newline)
			for _, ll := range strings.Split(l, "\\n") {
				if ll != l && len(ll) > maxLengthToSkipObfuscation {
					replacerStrings = append(replacerStrings, ll, "***")
				}
			}
		}
	}
	return
}

func (ob *client) Obfuscate(input string) string {
	if ob.replacer == nil {
		return ob.ObfuscateSecrets(input)
	}
	return ob.ObfuscateSecrets(ob.replacer.Replace(input))
}

var secretEnvelopeRegex = regexp.MustCompile(`estafette\.secret\(([a-zA-Z0-9.=_-]+)\)`)

func (ob *client) ObfuscateSecrets(input string) string {
	return secretEnvelopeRegex.ReplaceAllString(input, "***")
}
