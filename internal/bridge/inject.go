package bridge

import (
	"fmt"
	"strings"

	"previewd/internal/types"
)

// Markers identifying an already-injected script. Injection keys on these,
// so re-injecting produced markup is a byte-identical no-op.
const (
	configMarker     = `data-previewd="config"`
	screenshotMarker = `data-previewd="screenshot"`
	visualEditMarker = `data-previewd="visual-edit"`
)

// configScript binds the page to its project. The bridge endpoint itself
// can be overridden by the embedding environment via window.__PREVIEWD_BRIDGE__.
func configScript(projectID string) string {
	return fmt.Sprintf(`<script data-previewd="config">window.__PREVIEWD_PROJECT__ = %q;</script>`, projectID)
}

// screenshotScript is the application-side half of the screenshot
// exchange: wait for non-trivial rendered content, lazily load the DOM
// rasterizer, inline cross-origin images (placeholder on failure, to avoid
// a tainted render), rasterize the root, and reply.
const screenshotScript = `<script data-previewd="screenshot">
(function () {
  var RASTER_SRC = 'https://unpkg.com/html2canvas@1.4.1/dist/html2canvas.min.js';
  var sock = null;

  function bridge() {
    if (sock) return sock;
    var base = window.__PREVIEWD_BRIDGE__ || 'ws://localhost:8000/bridge';
    var url = base + (base.indexOf('?') < 0 ? '?' : '&') + 'project_id=' + encodeURIComponent(window.__PREVIEWD_PROJECT__ || '');
    sock = new WebSocket(url);
    sock.addEventListener('message', function (ev) {
      var msg;
      try { msg = JSON.parse(ev.data); } catch (e) { return; }
      if (msg && msg.type === 'capture-screenshot') capture();
    });
    return sock;
  }

  function send(msg) {
    var s = bridge();
    if (s.readyState === WebSocket.OPEN) s.send(JSON.stringify(msg));
    else s.addEventListener('open', function () { s.send(JSON.stringify(msg)); });
  }

  function waitForContent(tries, done) {
    var root = document.getElementById('root') || document.body;
    if (root && root.children.length > 0 && root.innerText.trim().length > 0) return done(true);
    if (tries <= 0) return done(false);
    setTimeout(function () { waitForContent(tries - 1, done); }, 500);
  }

  function loadRasterizer(done) {
    if (window.html2canvas) return done(null);
    var tag = document.createElement('script');
    tag.src = RASTER_SRC;
    tag.onload = function () { done(null); };
    tag.onerror = function () { done(new Error('rasterizer load failed')); };
    document.head.appendChild(tag);
  }

  function inlineImages(done) {
    var imgs = Array.prototype.slice.call(document.images).filter(function (img) {
      return img.src && img.src.indexOf('data:') !== 0 && new URL(img.src, location.href).origin !== location.origin;
    });
    var pending = imgs.length;
    if (!pending) return done();
    imgs.forEach(function (img) {
      fetch(img.src).then(function (r) { return r.blob(); }).then(function (blob) {
        return new Promise(function (resolve) {
          var reader = new FileReader();
          reader.onloadend = function () { img.src = reader.result; resolve(); };
          reader.readAsDataURL(blob);
        });
      }).catch(function () {
        // Visible placeholder beats a tainted, blocked render.
        img.style.background = '#e5e7eb';
        img.removeAttribute('src');
      }).finally(function () {
        if (--pending === 0) done();
      });
    });
  }

  function capture() {
    waitForContent(10, function (ok) {
      if (!ok) return send({ type: 'screenshot-error', error: 'no rendered content' });
      loadRasterizer(function (err) {
        if (err) return send({ type: 'screenshot-error', error: err.message });
        inlineImages(function () {
          var root = document.getElementById('root') || document.body;
          window.html2canvas(root, { useCORS: true, logging: false }).then(function (canvas) {
            send({ type: 'screenshot-captured', data: canvas.toDataURL('image/png') });
          }).catch(function (e) {
            send({ type: 'screenshot-error', error: String(e && e.message || e) });
          });
        });
      });
    });
  }

  bridge();
})();
</script>`

// visualEditScript is the application-side half of visual edit mode:
// highlight on hover while enabled, and on click report a descriptor of
// the element after stripping the editor's own transient classes.
const visualEditScript = `<script data-previewd="visual-edit">
(function () {
  var HIGHLIGHT = 'previewd-highlight';
  var ALLOWED_ATTRS = ['id', 'href', 'src', 'alt', 'title', 'type', 'name', 'placeholder'];
  var enabled = false;
  var selected = null;
  var sock = null;

  var style = document.createElement('style');
  style.textContent = '.' + HIGHLIGHT + ' { outline: 2px solid #6366f1 !important; cursor: crosshair !important; }';
  document.head.appendChild(style);

  function bridge() {
    if (sock) return sock;
    var base = window.__PREVIEWD_BRIDGE__ || 'ws://localhost:8000/bridge';
    var url = base + (base.indexOf('?') < 0 ? '?' : '&') + 'project_id=' + encodeURIComponent(window.__PREVIEWD_PROJECT__ || '');
    sock = new WebSocket(url);
    sock.addEventListener('message', function (ev) {
      var msg;
      try { msg = JSON.parse(ev.data); } catch (e) { return; }
      if (!msg) return;
      if (msg.type === 'toggle-mode') setEnabled(!!msg.enabled);
      if (msg.type === 'update-style' && selected && msg.property) {
        selected.style.setProperty(msg.property, msg.value);
      }
    });
    return sock;
  }

  function send(msg) {
    var s = bridge();
    if (s.readyState === WebSocket.OPEN) s.send(JSON.stringify(msg));
  }

  function cssSelector(el) {
    if (el.id) return '#' + el.id;
    var path = [];
    while (el && el !== document.body && el.parentElement) {
      var tag = el.tagName.toLowerCase();
      var index = 1;
      var sibling = el;
      while ((sibling = sibling.previousElementSibling)) {
        if (sibling.tagName === el.tagName) index++;
      }
      path.unshift(tag + ':nth-of-type(' + index + ')');
      el = el.parentElement;
    }
    return 'body > ' + path.join(' > ');
  }

  function onHover(ev) {
    if (!enabled) return;
    ev.target.classList.add(HIGHLIGHT);
  }
  function onLeave(ev) {
    ev.target.classList.remove(HIGHLIGHT);
  }
  function onClick(ev) {
    if (!enabled) return;
    ev.preventDefault();
    ev.stopPropagation();
    var el = ev.target;
    // Strip our own transient classes before reading the class list, so
    // editor-only classes never leak back to the host.
    el.classList.remove(HIGHLIGHT);
    selected = el;
    var attrs = {};
    ALLOWED_ATTRS.forEach(function (name) {
      if (el.hasAttribute(name)) attrs[name] = el.getAttribute(name);
    });
    send({
      type: 'selected',
      elementId: el.id || '',
      tagName: el.tagName.toLowerCase(),
      className: el.className,
      selector: cssSelector(el),
      innerText: (el.innerText || '').slice(0, 100),
      attributes: attrs,
      sourceHint: el.getAttribute('data-source') || ''
    });
  }

  function setEnabled(on) {
    enabled = on;
    if (!on) {
      Array.prototype.forEach.call(document.querySelectorAll('.' + HIGHLIGHT), function (el) {
        el.classList.remove(HIGHLIGHT);
      });
    }
  }

  document.addEventListener('mouseover', onHover, true);
  document.addEventListener('mouseout', onLeave, true);
  document.addEventListener('click', onClick, true);

  bridge();
})();
</script>`

// Inject appends the project config and the two helper scripts to the page
// markup. Injection is idempotent: markup that already contains them is
// returned unchanged, byte for byte.
func Inject(html, projectID string) string {
	if strings.Contains(html, configMarker) &&
		strings.Contains(html, screenshotMarker) &&
		strings.Contains(html, visualEditMarker) {
		return html
	}

	var scripts strings.Builder
	if !strings.Contains(html, configMarker) {
		scripts.WriteString("\n")
		scripts.WriteString(configScript(projectID))
	}
	if !strings.Contains(html, screenshotMarker) {
		scripts.WriteString("\n")
		scripts.WriteString(screenshotScript)
	}
	if !strings.Contains(html, visualEditMarker) {
		scripts.WriteString("\n")
		scripts.WriteString(visualEditScript)
	}

	if idx := strings.LastIndex(html, "</body>"); idx >= 0 {
		return html[:idx] + scripts.String() + "\n" + html[idx:]
	}
	return html + scripts.String()
}

// InjectIntoBundle returns a copy of the file set with the helper scripts
// injected into the served HTML entrypoints.
func InjectIntoBundle(files types.FileSet, projectID string) types.FileSet {
	out := make(types.FileSet, len(files))
	for path, content := range files {
		if path == "index.html" || path == "public/index.html" {
			out[path] = Inject(content, projectID)
			continue
		}
		out[path] = content
	}
	return out
}
