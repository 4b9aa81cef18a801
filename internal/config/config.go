package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/imgshare/internal/model"
	"github.com/nao1215/imgshare/internal/tor"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "imgshare"

	// DefaultMinImageSize is the byte size below which an image gets a
	// size-only fingerprint (no hash, no sample).
	DefaultMinImageSize = 20480

	// MinImageSizeFloor is the exclusive lower bound for MinImageSize. Below
	// it, thumbnails and icons would flood the store with hash matches.
	MinImageSizeFloor = 20000

	// DefaultMaxThreads is the number of targets processed concurrently.
	DefaultMaxThreads = 10

	// MaxThreadsCeiling is the exclusive upper bound for MaxThreads. The
	// worst-case concurrency is MaxThreads x MaxImgPerDomain requests.
	MaxThreadsCeiling = 50

	// DefaultMaxImgPerDomain caps the image references taken from one page;
	// it is also the inner pool size.
	DefaultMaxImgPerDomain = 30

	// DefaultDataFolder is the live corpus root.
	DefaultDataFolder = "./data"

	// DefaultURLFile is the newline-delimited target list read by scan when
	// no target is given on the command line.
	DefaultURLFile = "urls.txt"

	// DefaultTimeout bounds every network call. It also acts as the only
	// cancellation mechanism for a stuck unit.
	DefaultTimeout = 60 * time.Second

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; rv:128.0) Gecko/20100101 Firefox/128.0"

	// DefaultMaxBodySize limits how much of an HTML page is read.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute
)

// Config holds all options for one imgshare invocation. It is populated
// from defaults, the config file and CLI flags, and passed down explicitly.
type Config struct {
	// MinImageSize is the size threshold for hashing. Images smaller than
	// this are recorded with size and etag only.
	MinImageSize int64

	// MaxThreads is the outer pool size (targets in flight).
	MaxThreads int

	// MaxImgPerDomain is the inner pool size and the cap on image references
	// taken from one page.
	MaxImgPerDomain int

	// Proxies is the ordered egress list for anonymized hosts. The order is
	// part of the routing key: reordering moves domains to other circuits.
	Proxies []string

	// DataFolder is the live corpus root. New records are written here.
	DataFolder string

	// Archive lists read-only corpus roots merged into the store at load.
	Archive []string

	// HTMLParsing enables page mode. When false, only targets served as
	// images are fingerprinted.
	HTMLParsing bool

	// OnlyCompareExistingData skips all fetching and matches every persisted
	// record against the others.
	OnlyCompareExistingData bool

	// URLFile is the target list file.
	URLFile string

	// ImagesFolder is a folder of local files treated as direct images.
	ImagesFolder string

	// Timeout bounds each network call.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// MaxBodySize caps how many bytes of an HTML page are parsed.
	MaxBodySize int64

	// EmbeddedTor starts a private Tor daemon and uses it as the only proxy
	// when Proxies is empty.
	EmbeddedTor bool

	// TorStartupTimeout is the bootstrap limit for the embedded daemon.
	TorStartupTimeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit config file location.
	ConfigFilePath string

	// Markdown renders the grouping report as GitHub Flavored Markdown.
	Markdown bool

	// JSONReport renders the grouping report as JSON.
	JSONReport bool

	// ReportFile writes the grouping report to a file instead of stdout.
	ReportFile string

	// Targets is the resolved work list: URLs and local file paths.
	Targets []string
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		MinImageSize:      DefaultMinImageSize,
		MaxThreads:        DefaultMaxThreads,
		MaxImgPerDomain:   DefaultMaxImgPerDomain,
		DataFolder:        DefaultDataFolder,
		HTMLParsing:       true,
		URLFile:           DefaultURLFile,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
		MaxBodySize:       DefaultMaxBodySize,
		TorStartupTimeout: DefaultTorStartupTimeout,
	}
}

// XDGDataDir returns the XDG data directory for imgshare.
// On Linux: ~/.local/share/imgshare
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for imgshare.
// On Linux: ~/.config/imgshare
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DataRoot returns the live corpus root, falling back to the XDG data
// directory when DataFolder is empty.
func (c *Config) DataRoot() string {
	if c.DataFolder != "" {
		return c.DataFolder
	}
	return filepath.Join(XDGDataDir(), "data")
}

// Roots returns the live corpus root followed by the archive roots.
func (c *Config) Roots() []string {
	roots := make([]string, 0, 1+len(c.Archive))
	roots = append(roots, c.DataRoot())
	for _, a := range c.Archive {
		if a != "" {
			roots = append(roots, a)
		}
	}
	return roots
}

// Validate checks the configuration and returns the first problem found.
// It is called once after flags are parsed, before any fetching begins.
func (c *Config) Validate() error {
	if c.MinImageSize <= MinImageSizeFloor {
		return ErrInvalidMinImageSize
	}
	if c.MaxThreads <= 0 || c.MaxThreads >= MaxThreadsCeiling {
		return ErrInvalidMaxThreads
	}
	if c.MaxImgPerDomain <= 0 {
		return ErrInvalidMaxImgPerDomain
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.DataRoot() == "" {
		return ErrNoDataFolder
	}
	for _, p := range c.Proxies {
		if _, err := tor.ParseProxyAddress(p); err != nil {
			return err
		}
	}

	// Compare-only runs never touch the network.
	if c.OnlyCompareExistingData {
		return nil
	}

	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if len(c.Proxies) == 0 && !c.EmbeddedTor && c.HasAnonymizedTargets() {
		return ErrProxyRequired
	}
	return nil
}

// HasAnonymizedTargets reports whether any remote target is an .onion or
// .i2p host. Malformed targets are ignored here; they are skipped per unit.
func (c *Config) HasAnonymizedTargets() bool {
	for _, t := range c.Targets {
		if !model.IsRemote(t) {
			continue
		}
		host, err := model.HostOf(t)
		if err != nil {
			continue
		}
		if model.IsAnonymizedHost(host) {
			return true
		}
	}
	return false
}

// String summarizes the settings that shape a run, for debug logging.
func (c *Config) String() string {
	return fmt.Sprintf("min_size=%d threads=%d per_page=%d proxies=%d data=%s archives=%d html=%t",
		c.MinImageSize, c.MaxThreads, c.MaxImgPerDomain, len(c.Proxies), c.DataRoot(), len(c.Archive), c.HTMLParsing)
}
