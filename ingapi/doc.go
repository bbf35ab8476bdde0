// Package ingapi runs the two-call authorization flow of the API.
//
// # Flow
//
// A Client holds one set of Credentials and walks a Flow through three
// steps:
//
//  1. Token: a signed POST to /oauth2/token with a client credentials
//     grant. The signature travels in "Authorization: Signature ...". The
//     answer yields a Registration: the access token and the server key
//     taken from keys[0].
//  2. Resource: a signed GET of the resource path carrying
//     "Authorization: Bearer <token>" and a separate "Signature" header.
//  3. Verify: the Signature header of a 200 answer is checked against the
//     server key of the Registration.
//
// A non-200 answer ends the flow with a *StatusError and nothing is
// retried. A response that fails verification is still returned; the
// failure is logged, counted and kept on Result. Options.StrictVerification
// turns it into an error as well.
//
//	creds, err := ingapi.LoadCredentials(clientID, "key-sign.pem")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := ingapi.NewClient(creds, ingapi.Options{
//	    BaseURL:    "https://api.sandbox.ing.com",
//	    HTTPClient: mtls.NewHTTPClient(tlsConfig, 30*time.Second),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	flow, err := client.Run(ctx, "/greetings/single")
//
// # Transport
//
// Requests leave through a Sender. HTTPSender wraps an *http.Client, which
// is where mutual TLS is configured; tests and other transports can supply
// their own Sender or SenderFunc.
//
// # Observability
//
// Steps are logged with zap, traced as ingapi.token, ingapi.resource and
// ingapi.verify spans, and counted by Metrics when one is configured.
package ingapi
