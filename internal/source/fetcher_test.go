package source

import (
	"net/http"
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/carlistingworker/helpers"
)

func documentResponse(status int64) *network.EventResponseReceived {
	return &network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: status},
	}
}

func TestDocumentStatusRateLimited(t *testing.T) {
	doc := &documentStatus{}
	doc.observe(documentResponse(http.StatusTooManyRequests))
	// later frames do not override the page status
	doc.observe(documentResponse(http.StatusOK))

	err := doc.check("https://www.cargurus.com/Cars/forsale")
	require.Error(t, err)
	assert.ErrorIs(t, err, helpers.ErrRateLimited)
}

func TestDocumentStatusIgnoresSubresources(t *testing.T) {
	doc := &documentStatus{}
	doc.observe(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: http.StatusTooManyRequests},
	})
	doc.observe("not a network event")
	assert.NoError(t, doc.check("https://www.cargurus.com/Cars/forsale"))

	doc.observe(documentResponse(http.StatusOK))
	assert.NoError(t, doc.check("https://www.cargurus.com/Cars/forsale"))
}
