package api

// docsHTML wraps the generated OpenAPI reference with a short guide to the
// login flow so an operator can drive a session from the browser.
const docsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="referrer" content="same-origin" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Holdings Agent API</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
  <style>
    body { margin: 0; height: 100vh; display: flex; flex-direction: column; background: #0d1117; color: #c9d1d9;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; font-size: 13px; }
    header { background: #161b22; border-bottom: 1px solid #30363d; padding: 10px 20px; }
    header h1 { margin: 0 0 6px; font-size: 15px; color: #e6edf3; }
    header ol { margin: 0; padding-left: 18px; line-height: 1.7; }
    header code { font-family: ui-monospace, SFMono-Regular, Menlo, monospace; font-size: 12px; color: #e6edf3; }
    header a { color: #58a6ff; text-decoration: none; }
    .ref { flex: 1; min-height: 0; }
  </style>
</head>
<body>
  <header>
    <h1>Holdings Agent</h1>
    <ol>
      <li><code>POST /api/v1/session</code> opens the login page and, with credentials, submits them once.</li>
      <li><code>GET /api/v1/session/status</code> reads the page and advances the state. Complete MFA or a challenge in the browser, then poll again.
        Prefer the <a href="/docs/events">session event stream</a> over tight polling.</li>
      <li><code>GET /api/v1/holdings</code> extracts holdings once the state is <code>AUTHENTICATED</code>; earlier it answers 409 "not logged in".</li>
      <li><code>POST /api/v1/session/screenshot</code> and <code>/api/v1/snapshots</code> keep debug captures of the page.</li>
      <li><code>DELETE /api/v1/session</code> closes the browser. Required before restarting after <code>REJECTED</code> or <code>ERROR</code>.</li>
    </ol>
  </header>
  <div class="ref">
    <elements-api
      apiDescriptionUrl="/openapi.json"
      router="hash"
      layout="sidebar"
      tryItCredentialsPolicy="same-origin"
      darkMode
    />
  </div>
</body>
</html>`
