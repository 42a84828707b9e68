package meetup

import (
	"context"
	"testing"

	"eventharvest-backend/lib/surface"

	"github.com/stretchr/testify/require"
)

func newStaticClient(t *testing.T, url string, page surface.StaticPage) *Client {
	t.Helper()
	s := surface.NewStatic()
	s.AddPage(url, page)
	err := s.Navigate(context.Background(), url)
	require.NoError(t, err)
	return NewClient(ClientOptions{Surface: s})
}

func TestClassifyGate(t *testing.T) {
	cases := []struct {
		name   string
		url    string
		page   surface.StaticPage
		expect GateState
	}{
		{
			name:   "login title",
			url:    "https://www.meetup.com/login/",
			page:   surface.StaticPage{Title: "Login to Meetup | Meetup"},
			expect: LoginRequired,
		},
		{
			name:   "login path",
			url:    "https://www.meetup.com/login/?returnUri=x",
			page:   surface.StaticPage{Title: "Meetup"},
			expect: LoginRequired,
		},
		{
			name:   "sign-in path",
			url:    "https://www.meetup.com/sign-in",
			page:   surface.StaticPage{Title: "Meetup"},
			expect: LoginRequired,
		},
		{
			name:   "events listing",
			url:    "https://www.meetup.com/go-group/events/past/",
			page:   surface.StaticPage{Title: "Past events | Go Group"},
			expect: Authenticated,
		},
		{
			// target content visible, precision beats recall here
			name:   "ambiguous title",
			url:    "https://www.meetup.com/go-group/events/past/",
			page:   surface.StaticPage{Title: "", HTML: "<div>events</div>"},
			expect: Authenticated,
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			c := newStaticClient(t, test.url, test.page)
			require.Equal(t, test.expect, c.ClassifyGate(context.Background()))
		})
	}
}
