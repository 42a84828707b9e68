// Package assets downloads page-referenced media, currently attendee
// avatars, to local files so stored records reference stable paths
// instead of expiring CDN urls.
package assets

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"eventharvest-backend/lib/osutil"
	"eventharvest-backend/lib/scrapers/meetup"
	"eventharvest-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const avatarsDir = "avatars"

type Downloader struct {
	root string
	http *resty.Client
}

// NewDownloader stores fetched assets under root. The returned
// references are relative to root so the whole output tree stays
// relocatable.
func NewDownloader(root string) *Downloader {
	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetTimeout(time.Second * 15)
	telemetry.InstrumentResty(client, "lib/assets")

	return &Downloader{root: root, http: client}
}

var _ meetup.AssetFetcher = (*Downloader)(nil)

// Fetch downloads assetUrl once and returns the relative path of the
// local copy. The filename mixes the hint with a digest of the url,
// two people named "Sam" with different avatars never collide.
func (d *Downloader) Fetch(ctx context.Context, assetUrl string, hint string) (string, error) {
	rel := filepath.Join(avatarsDir, filename(assetUrl, hint))
	abs := filepath.Join(d.root, rel)

	_, err := os.Stat(abs)
	if err == nil {
		return rel, nil
	}

	res, err := d.http.R().SetContext(ctx).Get(assetUrl)
	if err != nil {
		return "", err
	}
	if res.StatusCode() >= 400 {
		return "", fmt.Errorf("fetch asset %q: status %d", assetUrl, res.StatusCode())
	}

	err = osutil.EnsureDir(filepath.Dir(abs))
	if err != nil {
		return "", err
	}
	err = os.WriteFile(abs, res.Body(), 0644)
	if err != nil {
		return "", err
	}
	return rel, nil
}

func filename(assetUrl string, hint string) string {
	sum := sha1.Sum([]byte(assetUrl))
	digest := hex.EncodeToString(sum[:])[:12]

	name := meetup.SanitizeIdentifier(hint)
	if name == "" {
		name = "asset"
	}

	ext := ".img"
	parsed, err := url.Parse(assetUrl)
	if err == nil {
		if e := strings.ToLower(path.Ext(parsed.Path)); e != "" && len(e) <= 5 {
			ext = e
		}
	}
	return name + "_" + digest + ext
}
