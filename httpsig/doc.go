// Package httpsig implements the HTTP signature scheme used by ING APIs:
// draft-cavage style signatures with rsa-sha256, a SHA-256 Digest header,
// and an X-ING-ReqID request identifier.
//
// # Signing String
//
// A request signature covers four headers, always in this order:
//
//	(request-target): post /oauth2/token
//	date: Tue, 01 Jan 2019 00:00:00 GMT
//	digest: SHA-256=47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=
//	x-ing-reqid: 8a6e2f1c-...
//
// Lines are joined by "\n" with no trailing newline. Response signatures
// cover whatever headers the server lists, in the listed order.
//
// # Signing Requests
//
// Use SignRequest to add Digest, Date, X-ING-ReqID and the signature to an
// HTTP request. The token call carries the signature in Authorization:
//
//	signer, err := httpsig.NewRSASHA256Signer(clientID, privateKey)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	_, err = httpsig.SignRequest(req, httpsig.SignConfig{
//	    Signer:    signer,
//	    Placement: httpsig.PlacementAuthorization,
//	})
//
// Resource calls keep Authorization for the bearer token and use a
// separate Signature header:
//
//	req.Header.Set("Authorization", "Bearer "+accessToken)
//	_, err = httpsig.SignRequest(req, httpsig.SignConfig{
//	    Signer:    signer,
//	    Placement: httpsig.PlacementSignature,
//	})
//
// # Verifying Responses
//
// VerifyResponse rebuilds the signing string from the headers named in the
// response Signature header and checks it with the server key:
//
//	verifier, err := httpsig.NewRSASHA256Verifier("server", serverKey)
//	res, err := httpsig.VerifyResponse(resp.Header, body, verifier)
//	if err == nil && !res.SignatureValid {
//	    // signature mismatch
//	}
//
// # Client Transport
//
// NewTransport creates an http.RoundTripper that signs all outgoing
// requests:
//
//	client := &http.Client{
//	    Transport: httpsig.NewTransport(nil, httpsig.SignConfig{
//	        Signer:    signer,
//	        Placement: httpsig.PlacementSignature,
//	    }),
//	}
//
// # Server Middleware
//
// Middleware verifies signed requests on the server side:
//
//	mw, err := httpsig.Middleware(httpsig.MiddlewareConfig{
//	    Verify: httpsig.VerifyConfig{
//	        Resolver:     resolver,
//	        MaxClockSkew: 5 * time.Minute,
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	router.Use(mw)
//
// # Keys
//
// Private keys are read from PKCS#8 PEM, public keys from PKIX PEM or an
// X.509 certificate, and server keys from a JSON Web Key:
//
//	key, err := httpsig.LoadPrivateKeyFile("key-sign.pem")
//	serverKey, err := httpsig.ParseJWK(rawJWK)
package httpsig
