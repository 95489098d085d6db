/*
Package server provides the HTTP interface of the proxy: BOSS-style cutout
routes for reading, writing and probing 3d volumes, static channel, experiment
and coordinate frame metadata, and server status and metrics endpoints.  It
also loads the TOML configuration that describes the stores and how they are
layered into one stack.

A cutout is addressed as

	/v1/cutout/{collection}/{experiment}/{channel}/{resolution}/{x0:x1}/{y0:y1}/{z0:z1}/

and its payload is raw uint8 voxels in C order over (X, Y, Z), or over
(Z, Y, X) when the "order=zyx" query string is given.
*/
package server
