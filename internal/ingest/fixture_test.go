package ingest

// fixtureHTML is a representative marketing page: JSON-LD organization
// markup, two heading-delimited content sections with anchorable sentences,
// and the chrome (nav, footer, CTA lines) the scrubber must drop.
const fixtureHTML = `<!DOCTYPE html>
<html>
<head>
<title>NRLC</title>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Organization","@id":"https://nrlc.ai/#org","name":"NRLC","url":"https://nrlc.ai/","description":"Citation-grade answer infrastructure.","telephone":"+1-555-0100"}
</script>
<style>body { color: #333; }</style>
<script>window.analytics = {};</script>
</head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<h1>NRLC Research Lab</h1>
<p>NRLC provides citation-grade ingestion infrastructure for AI answer engines. The platform ensures every extracted statement is anchored to exact character offsets. Each published fact includes a cryptographic fragment hash for later validation.</p>
<h2>What the platform does</h2>
<p>The ingestion pipeline requires a fixed user agent and stores an immutable snapshot. Structured data is harvested from JSON-LD blocks and normalized into flat maps. Sentences between forty and two hundred forty characters are kept as atomic facts. The quality gate guarantees anchored coverage of at least ninety-five percent. Verified domains are allowed to publish without complete schema markup. Mirrors are generated as Markdown documents with protocol version one point one. The active mirror for a path is swapped atomically during publication. Clients are served the active mirror with a content-hash ETag header. The dead-letter stream has a record for every job that exhausted its retries. Operators are able to requeue dead letters from the admin tooling.</p>
<p>Learn more</p>
<footer>All rights reserved</footer>
</body>
</html>`

const fixtureDomain = "nrlc.ai"
const fixtureURL = "https://nrlc.ai/"
