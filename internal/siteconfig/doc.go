// Package siteconfig resolves the effective configuration of the Renovate
// Initializr site from an explicit environment mapping and renders it in the
// shape the hosting web framework consumes at build or dev-server start.
package siteconfig
