package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/antic-browser/antic/log"
)

type SessionState int

const (
	SessionIdle SessionState = iota
	SessionLaunching
	SessionConfiguring
	SessionReady
	SessionNavigating
	SessionInteractive
	SessionClosing
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionLaunching:
		return "launching"
	case SessionConfiguring:
		return "configuring"
	case SessionReady:
		return "ready"
	case SessionNavigating:
		return "navigating"
	case SessionInteractive:
		return "interactive"
	case SessionClosing:
		return "closing"
	case SessionClosed:
		return "closed"
	}
	return "unknown"
}

const navTimeout = 60 * time.Second

// fallbackPages is tried in order when the homepage fails to load. The final
// blank page cannot fail, so a session always ends up on a loaded page.
var fallbackPages = []string{"https://whoer.net", "https://www.bing.com", "about:blank"}

// BrowserSession drives one browser instance from launch to close: relay
// startup, fingerprint overrides, init script registration, cookie load,
// navigation with fallback, then an unbounded wait for the user to close
// the window, followed by cookie persist and cleanup.
type BrowserSession struct {
	lc       *LaunchConfig
	cookies  *CookieStore
	notifier Notifier

	state_mtx sync.Mutex
	state     SessionState

	browser        *rod.Browser
	page           *rod.Page
	relay          *RelayBridge
	relay_cancel   context.CancelFunc
	ext_dir        string
	temp_user_data string
}

func NewBrowserSession(lc *LaunchConfig, cookies *CookieStore, notifier Notifier) *BrowserSession {
	return &BrowserSession{
		lc:       lc,
		cookies:  cookies,
		notifier: notifier,
		state:    SessionIdle,
	}
}

// SetExtensionDir points the session at an unpacked browser extension to
// load. Optional; ignored when the directory does not exist.
func (s *BrowserSession) SetExtensionDir(dir string) {
	s.ext_dir = dir
}

func (s *BrowserSession) State() SessionState {
	s.state_mtx.Lock()
	defer s.state_mtx.Unlock()
	return s.state
}

func (s *BrowserSession) setState(state SessionState) {
	s.state_mtx.Lock()
	s.state = state
	s.state_mtx.Unlock()
	log.Debug("session '%s': %s", s.lc.ProfileName, state)
}

// Run executes the whole session lifecycle and blocks until the browser
// window is closed or the context is cancelled. Errors during launch and
// configuration abort the session; navigation failures are absorbed by the
// fallback chain and never abort.
func (s *BrowserSession) Run(ctx context.Context) error {
	log.Info("launching browser for profile: %s", s.lc.ProfileName)

	s.setState(SessionLaunching)
	if err := s.launch(ctx); err != nil {
		s.abort("Browser launch failed", err)
		return err
	}

	s.setState(SessionConfiguring)
	if err := s.configure(); err != nil {
		s.abort("Browser configuration failed", err)
		return err
	}

	s.setState(SessionReady)
	s.notifier.NotifyInfo("Browser started", fmt.Sprintf("profile '%s' is up", s.lc.ProfileName))

	s.setState(SessionNavigating)
	s.navigate()

	s.setState(SessionInteractive)
	s.waitClosed(ctx)

	s.setState(SessionClosing)
	s.cleanup()
	s.setState(SessionClosed)

	s.notifier.NotifyInfo("Browser closed", fmt.Sprintf("profile '%s' finished, cookies saved", s.lc.ProfileName))
	return nil
}

func (s *BrowserSession) launch(ctx context.Context) error {
	if s.lc.NeedsRelay {
		s.relay = NewRelayBridge(s.lc.Proxy, s.lc.RelayPort)
		relay_ctx, cancel := context.WithCancel(ctx)
		s.relay_cancel = cancel
		if err := s.relay.Start(relay_ctx); err != nil {
			cancel()
			return err
		}
	}

	l := launcher.New().
		Headless(false).
		Set("disable-web-security", "").
		Set("ignore-certificate-errors", "").
		Set("disable-infobars", "").
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage", "").
		Set("no-first-run", "").
		Set("disable-default-apps", "").
		Set("enable-features", "NetworkService,NetworkServiceInProcess").
		Set("window-size", fmt.Sprintf("%d,%d", s.lc.Width, s.lc.Height))

	if os.Geteuid() == 0 {
		l = l.NoSandbox(true)
	}
	if !s.lc.WebGL {
		l = l.Set("disable-webgl", "")
	}
	if s.lc.ProxyServer != "" {
		l = l.Proxy(s.lc.ProxyServer)
	}
	if err := s.setupExtension(l); err != nil {
		log.Error("extension setup failed: %v", err)
	}

	control_url, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %v", err)
	}

	browser := rod.New().ControlURL(control_url)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %v", err)
	}
	s.browser = browser

	// the engine's native proxy option has no credential slot; answer the
	// 407 challenge over CDP instead
	if !s.lc.NeedsRelay && s.lc.ProxyUsername != "" {
		go s.browser.HandleAuth(s.lc.ProxyUsername, s.lc.ProxyPassword)()
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("failed to open page: %v", err)
	}
	s.page = page
	return nil
}

// setupExtension loads an unpacked extension and prepares a disposable user
// data dir with the extension pinned to the toolbar.
func (s *BrowserSession) setupExtension(l *launcher.Launcher) error {
	if s.ext_dir == "" {
		return nil
	}
	if _, err := os.Stat(s.ext_dir); err != nil {
		log.Debug("extension directory not found: %s", s.ext_dir)
		return nil
	}

	temp_dir, err := os.MkdirTemp("", "antic_browser_")
	if err != nil {
		return err
	}
	s.temp_user_data = temp_dir

	prefs_dir := filepath.Join(temp_dir, "Default")
	if err := os.MkdirAll(prefs_dir, 0700); err != nil {
		return err
	}
	ext_id := extensionId(s.ext_dir)
	prefs := map[string]interface{}{
		"extensions": map[string]interface{}{
			"pinned_extensions": []string{ext_id},
			"toolbar":           []string{ext_id},
		},
	}
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(prefs_dir, "Preferences"), data, 0600); err != nil {
		return err
	}

	l.Set("disable-extensions-except", s.ext_dir).
		Set("load-extension", s.ext_dir).
		UserDataDir(temp_dir)
	log.Info("loading extension from %s", s.ext_dir)
	return nil
}

func (s *BrowserSession) configure() error {
	if err := s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      s.lc.UserAgent,
		AcceptLanguage: s.lc.AcceptLanguage,
	}); err != nil {
		return fmt.Errorf("useragent override: %v", err)
	}

	if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.lc.Width,
		Height:            s.lc.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("viewport override: %v", err)
	}

	if err := (proto.EmulationSetLocaleOverride{Locale: s.lc.Locale}).Call(s.page); err != nil {
		return fmt.Errorf("locale override: %v", err)
	}
	if err := (proto.EmulationSetTimezoneOverride{TimezoneID: s.lc.TimezoneId}).Call(s.page); err != nil {
		return fmt.Errorf("timezone override: %v", err)
	}
	if s.lc.Touch {
		if err := touchOverride().Call(s.page); err != nil {
			return fmt.Errorf("touch override: %v", err)
		}
	}
	if s.lc.Geolocation != nil {
		if err := geoOverride(s.lc.Geolocation).Call(s.page); err != nil {
			return fmt.Errorf("geolocation override: %v", err)
		}
	}

	// order matters: all overrides must be installed before the first
	// navigation so they apply from the first script of the new document
	for _, script := range initScripts(s.lc) {
		if _, err := s.page.EvalOnNewDocument(script); err != nil {
			return fmt.Errorf("init script: %v", err)
		}
	}

	s.loadCookies()

	if _, err := s.page.Eval(`() => { navigator.__proto__.webdriver = undefined; }`); err != nil {
		log.Debug("webdriver cleanup: %v", err)
	}
	return nil
}

func (s *BrowserSession) loadCookies() {
	cookies := s.cookies.Load(s.lc.ProfileName, s.lc.Cookies)
	if len(cookies) == 0 {
		return
	}

	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
			SameSite: proto.NetworkCookieSameSiteStrict,
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		params = append(params, p)
	}
	if err := s.page.SetCookies(params); err != nil {
		log.Error("failed to inject cookies: %v", err)
		return
	}
	log.Info("loaded %d cookies for profile: %s", len(params), s.lc.ProfileName)
}

// navigate opens the homepage, falling through the alternate destinations
// until one loads. Cannot fail: about:blank terminates the chain.
func (s *BrowserSession) navigate() {
	navigateChain(append([]string{s.lc.Homepage}, fallbackPages...), func(u string) error {
		p := s.page.Timeout(navTimeout)
		if err := p.Navigate(u); err != nil {
			return err
		}
		return p.WaitLoad()
	})
}

// navigateChain tries each target in order and returns the first one that
// loaded, or "" when even the last target failed.
func navigateChain(targets []string, open func(u string) error) string {
	for _, u := range targets {
		log.Info("opening page: %s", u)
		if err := open(u); err != nil {
			log.Warning("failed to open %s: %v", u, err)
			continue
		}
		log.Success("page loaded: %s", u)
		return u
	}
	return ""
}

// waitClosed blocks until the browser window is closed or the context is
// cancelled. There is no deadline; closing the window is the user's call.
func (s *BrowserSession) waitClosed(ctx context.Context) {
	closed := make(chan struct{})
	target_id := s.page.TargetID

	go s.browser.EachEvent(func(e *proto.TargetTargetDestroyed) bool {
		if e.TargetID == target_id {
			close(closed)
			return true
		}
		return false
	})()

	select {
	case <-closed:
		log.Info("browser window closed for profile: %s", s.lc.ProfileName)
	case <-ctx.Done():
		log.Info("session cancelled for profile: %s", s.lc.ProfileName)
	}
}

// cleanup tears the session down. Each step is independently guarded so a
// failing step never blocks the remaining ones.
func (s *BrowserSession) cleanup() {
	if s.relay_cancel != nil {
		s.relay_cancel()
		s.relay.Stop()
	}

	s.saveCookies()

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			log.Debug("browser close: %v", err)
		}
	}

	if s.temp_user_data != "" {
		if err := os.RemoveAll(s.temp_user_data); err != nil {
			log.Error("failed to remove temp directory: %v", err)
		} else {
			log.Debug("temp directory removed: %s", s.temp_user_data)
		}
	}
}

func (s *BrowserSession) saveCookies() {
	if s.browser == nil {
		return
	}
	raw, err := s.browser.GetCookies()
	if err != nil {
		log.Error("failed to read cookies: %v", err)
		return
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, Cookie{
			Domain:   c.Domain,
			Path:     c.Path,
			Name:     c.Name,
			Value:    c.Value,
			Expires:  float64(c.Expires),
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	if err := s.cookies.Save(s.lc.ProfileName, cookies); err != nil {
		log.Error("failed to save cookies: %v", err)
		return
	}
	log.Info("cookies saved for profile: %s", s.lc.ProfileName)
}

// abort handles a fatal launch/configure error: report it, close what was
// opened, mark the session closed.
func (s *BrowserSession) abort(title string, err error) {
	log.Error("%s: %v", title, err)
	s.notifier.NotifyError(title, err.Error())

	if s.relay_cancel != nil {
		s.relay_cancel()
	}
	if s.browser != nil {
		s.browser.Close()
	}
	if s.temp_user_data != "" {
		os.RemoveAll(s.temp_user_data)
	}
	s.setState(SessionClosed)
}

// the engine's optional proto fields are pointers; build the override
// payloads out of line so the values are addressable
func touchOverride() *proto.EmulationSetTouchEmulationEnabled {
	max_touch := 5
	return &proto.EmulationSetTouchEmulationEnabled{
		Enabled:        true,
		MaxTouchPoints: &max_touch,
	}
}

func geoOverride(g *Geolocation) *proto.EmulationSetGeolocationOverride {
	lat := g.Latitude
	lng := g.Longitude
	accuracy := float64(100)
	return &proto.EmulationSetGeolocationOverride{
		Latitude:  &lat,
		Longitude: &lng,
		Accuracy:  &accuracy,
	}
}

// initScripts returns the anti-fingerprint scripts in registration order.
func initScripts(lc *LaunchConfig) []string {
	primary := lc.Locale
	if idx := len(primary); idx > 2 {
		primary = primary[:2]
	}
	return []string{
		fmt.Sprintf(`Object.defineProperty(navigator, 'vendor', {
	get: function() { return '%s'; }
});`, lc.Vendor),
		fmt.Sprintf(`Object.defineProperty(navigator, 'hardwareConcurrency', {
	get: function() { return %d; }
});`, lc.CPU),
		fmt.Sprintf(`Object.defineProperty(navigator, 'deviceMemory', {
	get: function() { return %d; }
});`, lc.RAM),
		fmt.Sprintf(`Object.defineProperty(navigator, 'language', {
	get: function() { return '%s'; }
});
Object.defineProperty(navigator, 'languages', {
	get: function() { return ['%s', '%s', 'en-US', 'en']; }
});`, lc.Locale, lc.Locale, primary),
		`if (navigator.mediaDevices && navigator.mediaDevices.enumerateDevices) {
	navigator.mediaDevices.enumerateDevices = function() {
		return Promise.resolve([]);
	};
}
const original_RTCPeerConnection = window.RTCPeerConnection || window.webkitRTCPeerConnection || window.mozRTCPeerConnection;
if (original_RTCPeerConnection) {
	window.RTCPeerConnection = function(...args) {
		const pc = new original_RTCPeerConnection(...args);
		pc.createOffer = function() {
			return Promise.reject(new Error('WebRTC is disabled'));
		};
		return pc;
	};
}`,
	}
}

// extensionId derives a stable pseudo-id for an unpacked extension from its
// directory name. Chrome computes the real id from the manifest key; the
// Preferences pin entry only needs to be consistent between sessions.
func extensionId(dir string) string {
	return filepath.Base(dir)
}
