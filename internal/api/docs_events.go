package api

const eventsDocsHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Session Event Stream - Holdings Agent</title>
  <style>
    body {
      margin: 0;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", sans-serif;
      font-size: 14px;
      line-height: 1.65;
      background: #0d1117;
      color: #c9d1d9;
    }
    a { color: #58a6ff; text-decoration: none; }
    nav {
      background: #161b22;
      border-bottom: 1px solid #30363d;
      padding: 0 24px;
      height: 48px;
      display: flex;
      align-items: center;
      gap: 16px;
    }
    nav .brand { font-weight: 600; font-size: 15px; color: #e6edf3; }
    main { max-width: 860px; margin: 0 auto; padding: 24px 16px 64px; }
    h2 { color: #e6edf3; border-bottom: 1px solid #21262d; padding-bottom: 6px; }
    pre {
      background: #161b22;
      border: 1px solid #30363d;
      border-radius: 6px;
      padding: 12px 16px;
      overflow-x: auto;
    }
    code { font-family: ui-monospace, SFMono-Regular, Menlo, monospace; font-size: 12px; }
    table { border-collapse: collapse; width: 100%; }
    td, th { border: 1px solid #30363d; padding: 6px 10px; text-align: left; }
  </style>
</head>
<body>
  <nav>
    <span class="brand">Holdings Agent</span>
    <span>/</span>
    <span>Session Event Stream</span>
    <a href="/docs">&larr; REST API</a>
  </nav>
  <main>
    <h2>Overview</h2>
    <p>
      Every session state change is published on the <code>session</code> feed.
      A new client first receives the latest event, then every change as it happens.
      Use it instead of tight polling while a person completes MFA or a security challenge.
    </p>

    <h2>Server-Sent Events</h2>
    <pre><code>curl -N http://127.0.0.1:8190/api/v1/session/events?feeds=session</code></pre>
    <pre><code>event: session
data: {"from":"SUBMITTING","to":"AWAITING_MFA","signal":"mfa-required","message":"MFA Required","at":"2026-01-02T03:04:05Z"}</code></pre>

    <h2>WebSocket</h2>
    <pre><code>websocat ws://127.0.0.1:8190/api/v1/session/ws</code></pre>
    <p>Each text frame wraps the same payload:</p>
    <pre><code>{"feed":"session","payload":{"from":"SUBMITTING","to":"AUTHENTICATED","signal":"authenticated","message":"Login Detected","at":"2026-01-02T03:04:09Z"}}</code></pre>

    <h2>States</h2>
    <table>
      <tr><th>State</th><th>Meaning</th></tr>
      <tr><td>LAUNCHING</td><td>Browser open on the login page, no credentials submitted.</td></tr>
      <tr><td>SUBMITTING</td><td>Credentials submitted, outcome not known yet.</td></tr>
      <tr><td>CHALLENGE</td><td>An anti-automation challenge is shown. Polling retries one dismissal.</td></tr>
      <tr><td>AWAITING_MFA</td><td>The provider asked for a one-time code.</td></tr>
      <tr><td>AUTHENTICATED</td><td>Signed in. Holdings can be fetched.</td></tr>
      <tr><td>REJECTED</td><td>The provider refused the credentials. Close and start again.</td></tr>
      <tr><td>ERROR</td><td>The browser was lost. Close before starting again.</td></tr>
      <tr><td>CLOSED</td><td>The session was closed.</td></tr>
    </table>
  </main>
</body>
</html>`
