package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAbsoluteURL(t *testing.T) {
	base := "https://www.city.waltham.ma.us/calendar"

	assert.Equal(t, "https://www.city.waltham.ma.us/calendar/1234",
		absoluteURL(base, "1234"))
	assert.Equal(t, "https://www.city.waltham.ma.us/news/5",
		absoluteURL(base, "/news/5"))
	assert.Equal(t, "https://other.example.org/x",
		absoluteURL(base, "https://other.example.org/x"))
	assert.Equal(t, base, absoluteURL(base, ""))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "City Council Meeting", cleanText("  City \n Council\t Meeting "))
	assert.Equal(t, "", cleanText("   "))
}
