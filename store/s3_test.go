package store

import (
	"testing"
)

func TestS3Parse(t *testing.T) {
	testS3Parse(t, "", "", "", "")
	testS3Parse(t, "arn:aws:s3:::bucket", "", "", "")
	testS3Parse(t, "arn:aws:s3:::bucket/folder/file.xxx", "", "bucket", "folder/file.xxx")
	testS3Parse(t, "arn:aws:s3:region::bucket/folder/file.xxx", "region", "bucket", "folder/file.xxx")
}

func testS3Parse(t *testing.T, input, region, bucket, key string) {
	r, b, k := s3parse(input)
	if r != region {
		t.Errorf("testS3Parse: input=[%s] region expected=[%s] got=[%s]", input, region, r)
	}
	if b != bucket {
		t.Errorf("testS3Parse: input=[%s] bucket expected=[%s] got=[%s]", input, bucket, b)
	}
	if k != key {
		t.Errorf("testS3Parse: input=[%s] key expected=[%s] got=[%s]", input, key, k)
	}
}

func TestS3Path(t *testing.T) {
	if !S3Path("arn:aws:s3:sa-east-1::bucket/R1/R1.") {
		t.Errorf("S3Path: arn path not detected")
	}
	if S3Path("/var/iosauto/repo/R1/R1.") {
		t.Errorf("S3Path: local path detected as s3")
	}
	if u := S3URL("arn:aws:s3:sa-east-1::bucket/R1/R1.3"); u != "https://s3.sa-east-1.amazonaws.com/bucket/R1/R1.3" {
		t.Errorf("S3URL: got=%s", u)
	}
}

func TestS3JoinPath(t *testing.T) {
	dir := "arn:aws:s3:sa-east-1::bucket/R1"
	if p := Join(dir, "R1.0"); p != dir+"/R1.0" {
		t.Errorf("joinPath: got=%s", p)
	}
	if b := basePath(dir + "/R1."); b != "R1." {
		t.Errorf("basePath: got=%s", b)
	}
}
