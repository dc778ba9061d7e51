// memos-bootstrap (`memos-bootstrap`) builds and starts the memos service. It
// layers the application source on a prebuilt base image, in a fixed order
// (base, working directory, mirror, source, import path, port, start
// command), and starts the ASGI server either in a container or as a local
// process while tracking its STARTING, SERVING and STOPPED states.
package memosbootstrap
