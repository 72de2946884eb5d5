// internal/driver/locator_test.go
package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		in   string
		want Locator
	}{
		{"id=save", ID("save")},
		{"ID=save", ID("save")},
		{"css=#form input[type=text]", CSS("#form input[type=text]")},
		{"xpath=//div[@id='a']", XPath("//div[@id='a']")},
		{"name=email", Name("email")},
		{"//button[text()='Go']", XPath("//button[text()='Go']")},
		{"(//li)[2]", XPath("(//li)[2]")},
		{"input[name=q]", CSS("input[name=q]")},
		{"  #panel  ", CSS("#panel")},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLocator(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("errors", func(t *testing.T) {
		_, err := ParseLocator("")
		assert.Error(t, err)
		_, err = ParseLocator("id=")
		assert.Error(t, err)
	})
}

func TestLocatorString(t *testing.T) {
	assert.Equal(t, "id=save", ID("save").String())
	assert.True(t, Locator{}.IsZero())
	assert.Equal(t, "visible text", SelectByVisibleText.String())
}

func TestLocatorNth(t *testing.T) {
	got, err := XPath("//ul[@id='hits']/li").Nth(2)
	require.NoError(t, err)
	assert.Equal(t, XPath("(//ul[@id='hits']/li)[3]"), got)

	got, err = Name("city").Nth(0)
	require.NoError(t, err)
	assert.Equal(t, XPath("(//*[@name='city'])[1]"), got)

	_, err = CSS("li.hit").Nth(0)
	assert.Error(t, err)
	_, err = ID("save").Nth(0)
	assert.Error(t, err)
	_, err = XPath("//li").Nth(-1)
	assert.Error(t, err)
}
