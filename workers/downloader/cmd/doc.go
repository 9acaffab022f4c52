/*
Command downloader consumes manga chapter download jobs and stores their pages.

Each job names a title, a chapter and the pages that make it up. Pages either
travel inline as base64 or are fetched from their source uri. Once stored,
the chapter is validated by size, recorded in the bookkeeping table of the
site it came from, and announced to the update endpoint.

Usage:

	downloader serve [--seed job.json ...]
	downloader enqueue <job.json>
	downloader exclude <title> <chapter>
	downloader migrate

The runtime is chosen with ADAPTER_RUNTIME: rabbitmq (default), sqs, lambda,
http, or memory. Storage is ADAPTER_STORAGE (filesystem or s3) and the
bookkeeping database ADAPTER_DATABASE (postgres or sqlite).

Delivery semantics with a broker:
  - bodies that are not UTF-8 JSON jobs are rejected and never redelivered
  - any processing error requeues the job
  - everything else, skips and failed validation included, is acknowledged
*/
package main
