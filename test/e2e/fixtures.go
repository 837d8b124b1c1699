// Package e2e exercises the whole planning pipeline over the HTTP API:
// project creation, document ingestion, revision diffing, retrieval, plan
// jobs, and backlog export.
package e2e

// Requirement document revisions used across the end-to-end tests. The v2
// revision modifies the REQUISITOS section, adds a payments section, and
// drops the annex.
const (
	requirementsV1 = `1. Introducción
El presente documento describe el sistema de gestión de pedidos.

REQUISITOS
El sistema debe loguear usuarios.
El sistema debe registrar pedidos con fecha y cliente.

2. Reportes
El módulo de reportes genera archivos mensuales en CSV.

ANEXO TÉCNICO
El despliegue se realiza en contenedores.
`

	requirementsV2 = `1. Introducción
El presente documento describe el sistema de gestión de pedidos.

REQUISITOS
El sistema debe loguear usuarios y exportar reportes.
El sistema debe registrar pedidos con fecha y cliente.

2. Reportes
El módulo de reportes genera archivos mensuales en CSV.

3. Pagos
La pasarela de pagos procesa tarjetas de crédito y débito.
`
)

// providerBacklog is the canned generation response used by the stub
// provider: a well-formed backlog wrapped in a markdown fence, the way chat
// models tend to answer even when asked not to.
const providerBacklog = "```json\n" + `[
  {"title": "Implementar login de usuarios", "description": "Autenticación con correo y contraseña.", "priority": "alta", "estimate": "5d"},
  {"title": "Registrar pedidos", "description": "Alta de pedidos con fecha y cliente.", "priority": "alta", "estimate": "8d"},
  {"title": "Exportar reportes mensuales", "priority": "media", "estimate": "3d"}
]` + "\n```"
