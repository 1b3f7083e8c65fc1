package report

// ReportTemplate is the HTML template for the exported investment report.
// It is embedded as a Go constant, with no external file dependencies.
const ReportTemplate = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: #ffffff;
    --text: #1a1a2e;
    --muted: #6b7280;
    --border: #e5e7eb;
    --accent: #c8102e;
    --green: #16a34a;
    --red: #dc2626;
    --section-bg: #f8fafc;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    color: var(--text);
    background: var(--bg);
    line-height: 1.6;
    max-width: 900px;
    margin: 0 auto;
    padding: 20px;
  }
  h1, h2, h3, h4 { font-weight: 600; }
  h1 { font-size: 1.5rem; margin-bottom: 4px; }
  h2 { font-size: 1.2rem; margin: 24px 0 12px; padding-bottom: 6px; border-bottom: 2px solid var(--accent); }
  h3 { font-size: 1rem; margin: 16px 0 8px; }
  p { margin: 6px 0; }
  ul, ol { margin: 6px 0 6px 24px; }
  .muted { color: var(--muted); font-size: 0.85rem; }

  /* Header */
  .header {
    display: flex;
    justify-content: space-between;
    align-items: flex-start;
    border-bottom: 3px solid var(--accent);
    padding-bottom: 12px;
    margin-bottom: 16px;
  }
  .header-left h1 { color: var(--accent); }
  .header-right { text-align: right; }

  /* Parameters bar */
  .params {
    display: grid;
    grid-template-columns: repeat(auto-fill, minmax(180px, 1fr));
    gap: 8px;
    background: var(--section-bg);
    padding: 12px;
    border-radius: 8px;
    margin-bottom: 16px;
  }
  .param .label { font-size: 0.75rem; color: var(--muted); text-transform: uppercase; }
  .param .value { font-size: 1rem; font-weight: 600; }

  /* Tables */
  table { width: 100%; border-collapse: collapse; margin: 8px 0 16px; font-size: 0.85rem; }
  th { background: var(--section-bg); text-align: left; padding: 6px; font-weight: 600; }
  td { padding: 6px; border-bottom: 1px solid var(--border); }
  td.num { text-align: right; }
  tr.failed td { color: var(--muted); }

  .section { margin: 20px 0; }

  /* Footer */
  .footer {
    margin-top: 30px;
    padding-top: 12px;
    border-top: 2px solid var(--border);
    font-size: 0.8rem;
    color: var(--muted);
    text-align: center;
  }

  @media print {
    body { max-width: 100%; padding: 10px; }
    .section { page-break-inside: avoid; }
  }
</style>
</head>
<body>

<!-- ═══════ HEADER ═══════ -->
<div class="header">
  <div class="header-left">
    <h1>{{.Title}}</h1>
    <p class="muted">Mercado Continuo · Bolsa de Madrid</p>
  </div>
  <div class="header-right">
    <p class="muted">{{.GeneratedAt}}</p>
    <p class="muted">{{.Author}}</p>
  </div>
</div>

<!-- ═══════ PARAMETERS ═══════ -->
<div class="params">
  <div class="param"><div class="label">Perfil de riesgo</div><div class="value">{{.Profile}}</div></div>
  <div class="param"><div class="label">Objetivo</div><div class="value">{{.Objective}}</div></div>
  <div class="param"><div class="label">Informe</div><div class="value">{{.Kind}}</div></div>
  {{if .DataAt}}<div class="param"><div class="label">Datos de mercado</div><div class="value">{{.DataAt}}</div></div>{{end}}
</div>

<!-- ═══════ BODY ═══════ -->
<div class="section">
{{.Body}}
</div>

<!-- ═══════ PROFITABILITY ═══════ -->
{{if .Rows}}
<div class="section">
  <h2>Anexo: rentabilidad por dividendo</h2>
  <table>
    <thead><tr>
      <th>Empresa</th><th>Ticker</th><th>Precio</th><th>Dividendo</th>
      <th>Rent. div.</th><th>Capitalización</th><th>Cambio 1A ajustado</th>
    </tr></thead>
    <tbody>
    {{range .Rows}}
    <tr{{if .Failed}} class="failed"{{end}}>
      <td>{{.Name}}</td>
      <td>{{.Symbol}}</td>
      <td class="num">{{.Price}}</td>
      <td class="num">{{.Dividend}}</td>
      <td class="num">{{.Yield}}</td>
      <td class="num">{{.MarketCap}}</td>
      <td class="num">{{.Change}}</td>
    </tr>
    {{end}}
    </tbody>
  </table>
</div>
{{end}}

<!-- ═══════ FOOTER ═══════ -->
<div class="footer">
  <p><strong>Aviso:</strong> informe generado por IA con fines educativos e informativos.
  No constituye asesoramiento financiero. Consulta con un asesor registrado en la CNMV antes de invertir.</p>
  <p>{{.Author}} · Generado el {{.GeneratedAt}}</p>
</div>

</body>
</html>`
