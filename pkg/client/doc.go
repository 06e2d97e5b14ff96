// Package client provides the EduChain Go SDK for issuing, revoking, and
// verifying academic certificates through the EduChain gateway.
package client
