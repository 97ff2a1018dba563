package store

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/udhos/equalfile"
)

const s3prefix = "arn:aws:s3:"

const s3maxCompareSize = 100000000 // 100M

var (
	s3lock    sync.Mutex
	awsSess   *session.Session
	s3clients = map[string]*s3.S3{} // region => client
	s3logger  hasPrintf
	s3region  string // default region
)

func s3init(logger hasPrintf, region string) {
	s3lock.Lock()
	defer s3lock.Unlock()
	s3region = region
	s3logger = logger
	s3logger.Printf("s3 store: initialized: default region=[%s]", region)
}

func s3log(format string, v ...interface{}) {
	if s3logger == nil {
		return
	}
	s3logger.Printf("s3 store: "+format, v...)
}

func s3client(region string) (*s3.S3, error) {
	s3lock.Lock()
	defer s3lock.Unlock()

	if region == "" {
		region = s3region
	}

	if c, found := s3clients[region]; found {
		return c, nil
	}

	if awsSess == nil {
		sess, err := session.NewSession()
		if err != nil {
			return nil, fmt.Errorf("s3client: could not create session: %v", err)
		}
		awsSess = sess
	}

	c := s3.New(awsSess, aws.NewConfig().WithRegion(region))
	s3clients[region] = c

	return c, nil
}

// S3Path reports whether path points to S3.
func S3Path(path string) bool {
	return strings.HasPrefix(path, s3prefix)
}

// S3URL converts an S3 path into a public https URL.
func S3URL(path string) string {
	region, bucket, key := s3parse(path)
	if region == "" {
		region = s3region
	}
	return fmt.Sprintf("https://s3.%s.amazonaws.com/%s/%s", region, bucket, key)
}

// "arn:aws:s3:region::bucket/folder/file.xxx"
func s3parse(path string) (string, string, string) {
	s := strings.SplitN(path, ":", 6)
	if len(s) < 6 {
		return "", "", ""
	}
	region := s[3]
	file := s[5]
	slash := strings.IndexByte(file, '/')
	if slash < 1 {
		return "", "", ""
	}
	bucket := file[:slash]
	key := file[slash+1:]
	return region, bucket, key
}

func s3object(path string) (*s3.S3, string, string, error) {
	region, bucket, key := s3parse(path)
	if bucket == "" {
		return nil, "", "", fmt.Errorf("bad s3 path: [%s]", path)
	}
	c, err := s3client(region)
	if err != nil {
		return nil, "", "", err
	}
	return c, bucket, key, nil
}

func s3fileExists(path string) bool {
	_, _, err := s3fileInfo(path)
	return err == nil
}

func s3fileInfo(path string) (time.Time, int64, error) {
	c, bucket, key, err := s3object(path)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("s3fileInfo: %v", err)
	}

	out, headErr := c.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if headErr != nil {
		return time.Time{}, 0, fmt.Errorf("s3fileInfo: [%s]: %v", path, headErr)
	}

	return aws.TimeValue(out.LastModified), aws.Int64Value(out.ContentLength), nil
}

func s3fileput(path string, buf []byte, contentType string) error {
	c, bucket, key, err := s3object(path)
	if err != nil {
		return fmt.Errorf("s3fileput: %v", err)
	}

	if contentType == "" || contentType == "detect" {
		contentType = http.DetectContentType(buf)
	}

	_, putErr := c.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf),
		ContentType: aws.String(contentType),
	})
	if putErr != nil {
		return fmt.Errorf("s3fileput: [%s]: %v", path, putErr)
	}

	s3log("s3fileput: [%s] uploaded %d bytes type=%s", path, len(buf), contentType)

	return nil
}

func s3fileOpen(path string) (io.ReadCloser, error) {
	c, bucket, key, err := s3object(path)
	if err != nil {
		return nil, fmt.Errorf("s3fileOpen: %v", err)
	}

	out, getErr := c.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if getErr != nil {
		return nil, fmt.Errorf("s3fileOpen: [%s]: %v", path, getErr)
	}

	return out.Body, nil
}

func s3fileFirstLine(path string) (string, error) {
	r, err := s3fileOpen(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	line, _, readErr := bufio.NewReader(r).ReadLine()

	return string(line), readErr
}

func s3fileRemove(path string) error {
	c, bucket, key, err := s3object(path)
	if err != nil {
		return fmt.Errorf("s3fileRemove: %v", err)
	}

	_, delErr := c.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if delErr != nil {
		return fmt.Errorf("s3fileRemove: [%s]: %v", path, delErr)
	}

	return nil
}

// S3 has no rename: copy then delete.
func s3fileRename(p1, p2 string) error {
	c, bucket1, key1, err1 := s3object(p1)
	if err1 != nil {
		return fmt.Errorf("s3fileRename: %v", err1)
	}
	_, bucket2, key2, err2 := s3object(p2)
	if err2 != nil {
		return fmt.Errorf("s3fileRename: %v", err2)
	}

	_, copyErr := c.CopyObject(&s3.CopyObjectInput{
		Bucket:     aws.String(bucket2),
		Key:        aws.String(key2),
		CopySource: aws.String(bucket1 + "/" + key1),
	})
	if copyErr != nil {
		return fmt.Errorf("s3fileRename: copy [%s] to [%s]: %v", p1, p2, copyErr)
	}

	return s3fileRemove(p1)
}

// s3dirList lists objects sharing the "folder" of path.
// Returned dirname has no trailing slash; names are relative to it.
func s3dirList(path string) (string, []string, error) {
	c, bucket, key, err := s3object(path)
	if err != nil {
		return "", nil, fmt.Errorf("s3dirList: %v", err)
	}

	lastSlash := strings.LastIndexByte(path, '/')
	dirname := path[:lastSlash]

	folder := ""
	if i := strings.LastIndexByte(key, '/'); i >= 0 {
		folder = key[:i+1]
	}

	var names []string

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(folder),
		Delimiter: aws.String("/"),
	}

	listErr := c.ListObjectsV2Pages(input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			names = append(names, strings.TrimPrefix(aws.StringValue(obj.Key), folder))
		}
		return true
	})
	if listErr != nil {
		return dirname, nil, fmt.Errorf("s3dirList: [%s]: %v", path, listErr)
	}

	return dirname, names, nil
}

func s3fileCompare(p1, p2 string) (bool, error) {
	r1, err1 := s3fileOpen(p1)
	if err1 != nil {
		return false, err1
	}
	defer r1.Close()

	r2, err2 := s3fileOpen(p2)
	if err2 != nil {
		return false, err2
	}
	defer r2.Close()

	cmp := equalfile.New(nil, equalfile.Options{MaxSize: s3maxCompareSize})

	return cmp.CompareReader(r1, r2)
}
