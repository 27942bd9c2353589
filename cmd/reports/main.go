package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"report-backend/pkg/api"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/schollz/progressbar/v3"
)

type client struct {
	http *resty.Client
}

func newClient(baseURL string) *client {
	return &client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Accept", "application/json").
			SetTimeout(30 * time.Second),
	}
}

func (c *client) upload(path string) (api.UploadResponse, error) {
	var res api.UploadResponse
	resp, err := c.http.R().
		SetFile("file", path).
		SetResult(&res).
		Post("/uploads")
	if err != nil {
		return res, fmt.Errorf("error uploading %s: %w", path, err)
	}
	if resp.IsError() {
		return res, fmt.Errorf("error uploading %s: status %d, body: %s", path, resp.StatusCode(), resp.String())
	}
	return res, nil
}

func (c *client) getReport(reportId string) (api.Report, bool, error) {
	var report api.Report
	resp, err := c.http.R().
		SetPathParam("report_id", reportId).
		SetResult(&report).
		Get("/reports/{report_id}")
	if err != nil {
		return report, false, fmt.Errorf("error getting report %s: %w", reportId, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return report, false, nil
	}
	if resp.IsError() {
		return report, false, fmt.Errorf("error getting report %s: status %d, body: %s", reportId, resp.StatusCode(), resp.String())
	}
	return report, true, nil
}

func (c *client) listReports(status string) ([]api.Report, error) {
	var list []api.Report
	resp, err := c.http.R().
		SetQueryParam("status", status).
		SetResult(&list).
		Get("/reports")
	if err != nil {
		return nil, fmt.Errorf("error listing reports: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("error listing reports: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return list, nil
}

func (c *client) waitForComplete(reportId string, timeout time.Duration, progress io.Writer) (api.Report, error) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription(fmt.Sprintf("waiting for %s", reportId)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	deadline := time.Now().Add(timeout)
	for {
		report, found, err := c.getReport(reportId)
		if err != nil {
			return report, err
		}
		if found && report.Status == "Complete" {
			return report, nil
		}
		_ = bar.Add(1)
		if time.Now().After(deadline) {
			return report, fmt.Errorf("report %s not complete after %v", reportId, timeout)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func main() {
	var (
		apiURL  string
		image   string
		text    string
		list    string
		timeout time.Duration
	)

	flag.StringVar(&apiURL, "api", "http://localhost:3001/api/v1", "base url of the report api")
	flag.StringVar(&image, "image", "", "image file to upload")
	flag.StringVar(&text, "text", "", "text file to upload")
	flag.StringVar(&list, "list", "", "list reports with this status (Complete or Incomplete) and exit")
	flag.DurationVar(&timeout, "timeout", time.Minute, "how long to wait for the report to complete")
	flag.Parse()

	c := newClient(apiURL)

	if list != "" {
		reports, err := c.listReports(list)
		if err != nil {
			log.Fatalf("Error listing reports: %v", err)
		}
		for _, report := range reports {
			fmt.Printf("%s\t%s\t%s\n", report.ReportId, report.Status, report.LastUpdated.Format(time.RFC3339))
		}
		return
	}

	if image == "" && text == "" {
		log.Fatalf("at least one of -image or -text is required")
	}

	var reportId string
	for _, path := range []string{image, text} {
		if path == "" {
			continue
		}
		res, err := c.upload(path)
		if err != nil {
			log.Fatalf("Error uploading file: %v", err)
		}
		fmt.Printf("Uploaded %s as s3://%s/%s (report %s, %s)\n", path, res.Bucket, res.Key, res.ReportId, res.Kind)
		reportId = res.ReportId
	}

	if image == "" || text == "" {
		return
	}

	report, err := c.waitForComplete(reportId, timeout, os.Stderr)
	if err != nil {
		log.Fatalf("Error waiting for report: %v", err)
	}

	fmt.Printf("Report %s is %s\n", report.ReportId, report.Status)
	fmt.Printf("Image: %s\n", report.ImageRef)
	fmt.Printf("Description: %s\n", report.Description)
}
